package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"groupspend/internal/core"
	"groupspend/internal/report"
)

// matching returns the expenses in groupIDs whose calendar day lies in dates.
func (s *Store) matching(groupIDs []int64, dates core.DateRange) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if slices.Contains(groupIDs, e.GroupID) && dates.Contains(core.DateOf(e.CreatedAt)) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) SumByDay(_ context.Context, groupIDs []int64, dates core.DateRange) ([]report.DayTotal, error) {
	type key struct {
		day      string
		currency core.Currency
	}
	sums := map[key]*report.DayTotal{}
	var out []*report.DayTotal
	for _, e := range s.matching(groupIDs, dates) {
		d := core.DateOf(e.CreatedAt)
		k := key{d.String(), e.Currency}
		row, ok := sums[k]
		if !ok {
			row = &report.DayTotal{Date: d, Currency: e.Currency}
			sums[k] = row
			out = append(out, row)
		}
		row.Total += e.Amount.Cents
	}
	slices.SortFunc(out, func(a, b *report.DayTotal) int {
		return cmp.Or(a.Date.Compare(b.Date.Time), strings.Compare(string(a.Currency), string(b.Currency)))
	})
	return deref(out), nil
}

func (s *Store) SumByCategory(_ context.Context, groupIDs []int64, dates core.DateRange) ([]report.CategoryTotal, error) {
	type key struct {
		category int64 // 0 for uncategorized
		currency core.Currency
	}
	sums := map[key]*report.CategoryTotal{}
	var out []*report.CategoryTotal
	for _, e := range s.matching(groupIDs, dates) {
		var k key
		k.currency = e.Currency
		if e.CategoryID != nil {
			k.category = *e.CategoryID
		}
		row, ok := sums[k]
		if !ok {
			row = &report.CategoryTotal{Currency: e.Currency}
			if e.CategoryID != nil {
				id := *e.CategoryID
				row.CategoryID = &id
			}
			sums[k] = row
			out = append(out, row)
		}
		row.Total += e.Amount.Cents
	}
	// Uncategorized sorts first, as NULL does in SQLite.
	slices.SortFunc(out, func(a, b *report.CategoryTotal) int {
		return cmp.Or(cmp.Compare(categoryKey(a.CategoryID), categoryKey(b.CategoryID)),
			strings.Compare(string(a.Currency), string(b.Currency)))
	})
	return deref(out), nil
}

func categoryKey(id *int64) int64 {
	if id == nil {
		return -1
	}
	return *id
}

func (s *Store) SumByGroupAndUser(_ context.Context, groupIDs []int64, dates core.DateRange) ([]report.GroupUserTotal, error) {
	type key struct {
		group, user int64
		currency    core.Currency
	}
	sums := map[key]*report.GroupUserTotal{}
	var out []*report.GroupUserTotal
	for _, e := range s.matching(groupIDs, dates) {
		k := key{e.GroupID, e.UserID, e.Currency}
		row, ok := sums[k]
		if !ok {
			row = &report.GroupUserTotal{GroupID: e.GroupID, UserID: e.UserID, Currency: e.Currency}
			sums[k] = row
			out = append(out, row)
		}
		row.Total += e.Amount.Cents
	}
	slices.SortFunc(out, func(a, b *report.GroupUserTotal) int {
		return cmp.Or(cmp.Compare(a.GroupID, b.GroupID), cmp.Compare(a.UserID, b.UserID),
			strings.Compare(string(a.Currency), string(b.Currency)))
	})
	return deref(out), nil
}

func deref[T any](rows []*T) []T {
	if len(rows) == 0 {
		return nil
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out
}

func (s *Store) CategoryNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			out[id] = c.Name
		}
	}
	return out, nil
}

func (s *Store) GroupNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			out[id] = g.Name
		}
	}
	return out, nil
}

func (s *Store) UserNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Name
		}
	}
	return out, nil
}
