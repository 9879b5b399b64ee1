package report

import (
	"cmp"
	"slices"

	"groupspend/internal/core"
)

// Percent returns part/whole*100 rounded half up to an integer.
// Callers must skip whole <= 0; it returns 0 for that case.
//
//	Percent(335, 1000) -> 34
//	Percent(1, 3)      -> 33
func Percent(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int((200*part + whole) / (2 * whole))
}

// currencyTotals sums minor units per currency without ever mixing them.
type currencyTotals struct {
	order []core.Currency
	sums  map[core.Currency]int64
}

func newCurrencyTotals() *currencyTotals {
	return &currencyTotals{sums: make(map[core.Currency]int64)}
}

func (t *currencyTotals) add(c core.Currency, v int64) {
	if _, ok := t.sums[c]; !ok {
		t.order = append(t.order, c)
	}
	t.sums[c] += v
}

func (t *currencyTotals) total(c core.Currency) int64 {
	return t.sums[c]
}

// ranked returns currencies with a positive total, largest first.
// Ties keep first-seen order.
func (t *currencyTotals) ranked() []core.Currency {
	out := make([]core.Currency, 0, len(t.order))
	for _, c := range t.order {
		if t.sums[c] > 0 {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Currency) int {
		return cmp.Compare(t.sums[b], t.sums[a])
	})
	return out
}

// rankIndex maps ranked currencies to their position.
func (t *currencyTotals) rankIndex() map[core.Currency]int {
	idx := make(map[core.Currency]int)
	for i, c := range t.ranked() {
		idx[c] = i
	}
	return idx
}
