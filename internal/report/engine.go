// Package report computes dashboard view-models from grouped ledger sums.
//
// Every report follows the same pipeline: query grouped sums, roll them up,
// attach integer percentages, sort descending by total and attach formatted
// strings. Totals are kept per currency and never summed across currencies.
package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"groupspend/internal/core"
	"groupspend/internal/filter"
	"groupspend/internal/format"
	"groupspend/internal/log"
)

// Observer receives the outcome of every report computation.
type Observer interface {
	ObserveReport(report string, elapsed time.Duration, err error)
}

// Engine runs the three dashboard reports against a Ledger.
// An Engine holds no per-request state and is safe for concurrent use.
type Engine struct {
	ledger          Ledger
	directory       Directory
	formatter       *format.Formatter
	defaultCurrency core.Currency
	observer        Observer
	logger          *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFormatter sets the viewer locale used for formatted amounts.
func WithFormatter(f *format.Formatter) Option {
	return func(e *Engine) { e.formatter = f }
}

// WithDefaultCurrency sets the currency reported for empty results.
func WithDefaultCurrency(c core.Currency) Option {
	return func(e *Engine) { e.defaultCurrency = c }
}

// WithObserver attaches a computation observer (metrics).
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent(log.ComponentReport) }
}

// NewEngine builds an engine over ledger and directory.
func NewEngine(ledger Ledger, directory Directory, opts ...Option) *Engine {
	e := &Engine{
		ledger:          ledger,
		directory:       directory,
		formatter:       format.New(format.DefaultLocale),
		defaultCurrency: core.USD,
		logger:          log.Nop().WithComponent(log.ComponentReport),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of the engine with extra options applied.
func (e *Engine) With(opts ...Option) *Engine {
	cp := *e
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Formatter returns the engine's money formatter.
func (e *Engine) Formatter() *format.Formatter {
	return e.formatter
}

func (e *Engine) observe(ctx context.Context, name string, f filter.Context, start time.Time, err error) {
	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.ObserveReport(name, elapsed, err)
	}
	fields := log.NewFields().WithReport(name, f.Fingerprint()).WithOperation(log.OpCompute)
	if err != nil {
		e.logger.ErrorContext(ctx, "Report computation failed", fields.WithError(err).ToSlice()...)
		return
	}
	fields[log.FieldDuration] = elapsed.Milliseconds()
	e.logger.DebugContext(ctx, "Report computed", fields.ToSlice()...)
}

func (e *Engine) money(cents int64, c core.Currency) string {
	return e.formatter.Money(core.Money{Cents: cents}, c)
}

// TotalSpent sums spend per day over the filter range.
//
// The result is expressed in the dominant currency (largest total). Totals
// in other currencies are listed in Others. Empty selections and empty
// results yield a zero total in the default currency with no chart points.
func (e *Engine) TotalSpent(ctx context.Context, f filter.Context) (result TotalSpent, err error) {
	if f.Empty() {
		return e.emptyTotal(), nil
	}
	start := time.Now()
	defer func() { e.observe(ctx, NameTotalSpent, f, start, err) }()

	rows, err := e.ledger.SumByDay(ctx, f.GroupIDs(), f.Range())
	if err != nil {
		return TotalSpent{}, fmt.Errorf("sum by day: %w", err)
	}

	totals := newCurrencyTotals()
	for _, r := range rows {
		totals.add(r.Currency, r.Total)
	}
	ranked := totals.ranked()
	if len(ranked) == 0 {
		return e.emptyTotal(), nil
	}

	currency := ranked[0]
	perDay := make(map[string]int64)
	for _, r := range rows {
		if r.Currency == currency {
			perDay[r.Date.String()] += r.Total
		}
	}

	dates := f.Range()
	chart := make([]ChartPoint, 0, dates.Days())
	for d := dates.Start; !d.After(dates.End.Time); d = d.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return TotalSpent{}, err
		}
		cents := perDay[d.String()]
		chart = append(chart, ChartPoint{
			Date:            d,
			Amount:          core.Money{Cents: cents}.MajorFloat(),
			FormattedAmount: e.money(cents, currency),
		})
	}

	var others []CurrencyTotal
	for _, c := range ranked[1:] {
		others = append(others, CurrencyTotal{
			Currency:       c,
			Total:          totals.total(c),
			FormattedTotal: e.money(totals.total(c), c),
		})
	}

	grand := totals.total(currency)
	return TotalSpent{
		Total:          grand,
		FormattedTotal: e.money(grand, currency),
		Currency:       currency,
		Chart:          chart,
		Others:         others,
	}, nil
}

func (e *Engine) emptyTotal() TotalSpent {
	return TotalSpent{
		Total:          0,
		FormattedTotal: e.money(0, e.defaultCurrency),
		Currency:       e.defaultCurrency,
		Chart:          []ChartPoint{},
	}
}

type categoryKey struct {
	id       int64
	known    bool
	currency core.Currency
}

// SpentByCategory breaks spend down by category, one row per
// (category, currency). Percentages are relative to the grand total of the
// row's currency.
func (e *Engine) SpentByCategory(ctx context.Context, f filter.Context) (result []CategoryShare, err error) {
	if f.Empty() {
		return []CategoryShare{}, nil
	}
	start := time.Now()
	defer func() { e.observe(ctx, NameSpentByCategory, f, start, err) }()

	rows, err := e.ledger.SumByCategory(ctx, f.GroupIDs(), f.Range())
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}

	totals := newCurrencyTotals()
	index := make(map[categoryKey]int)
	var shares []CategoryShare
	var ids []int64
	for _, r := range rows {
		key := categoryKey{currency: r.Currency}
		if r.CategoryID != nil {
			key.id, key.known = *r.CategoryID, true
		}
		totals.add(r.Currency, r.Total)
		if i, ok := index[key]; ok {
			shares[i].Total += r.Total
			continue
		}
		index[key] = len(shares)
		share := CategoryShare{Total: r.Total, Currency: r.Currency}
		if key.known {
			id := key.id
			share.CategoryID = &id
			ids = append(ids, id)
		}
		shares = append(shares, share)
	}

	rank := totals.rankIndex()
	if len(rank) == 0 {
		return []CategoryShare{}, nil
	}

	names, err := e.lookup(ctx, e.directory.CategoryNames, ids)
	if err != nil {
		return nil, fmt.Errorf("category names: %w", err)
	}

	out := make([]CategoryShare, 0, len(shares))
	for _, s := range shares {
		if _, ok := rank[s.Currency]; !ok {
			continue
		}
		s.Name = UncategorizedName
		if s.CategoryID != nil {
			if name, ok := names[*s.CategoryID]; ok {
				s.Name = name
			}
		}
		s.Percentage = Percent(s.Total, totals.total(s.Currency))
		s.FormattedAmount = e.money(s.Total, s.Currency)
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b CategoryShare) int {
		if c := cmp.Compare(rank[a.Currency], rank[b.Currency]); c != 0 {
			return c
		}
		return cmp.Compare(b.Total, a.Total)
	})
	return out, nil
}

type groupKey struct {
	id       int64
	currency core.Currency
}

// SpentByGroup breaks spend down by group and, inside each group, by user.
// Group percentages are relative to the grand total of the currency; user
// percentages are relative to their group's total.
func (e *Engine) SpentByGroup(ctx context.Context, f filter.Context) (result []GroupShare, err error) {
	if f.Empty() {
		return []GroupShare{}, nil
	}
	start := time.Now()
	defer func() { e.observe(ctx, NameSpentByGroup, f, start, err) }()

	rows, err := e.ledger.SumByGroupAndUser(ctx, f.GroupIDs(), f.Range())
	if err != nil {
		return nil, fmt.Errorf("sum by group and user: %w", err)
	}

	totals := newCurrencyTotals()
	index := make(map[groupKey]int)
	userIndex := make([]map[int64]int, 0)
	var groups []GroupShare
	var groupIDs, userIDs []int64
	seenGroup := make(map[int64]bool)
	seenUser := make(map[int64]bool)

	for _, r := range rows {
		totals.add(r.Currency, r.Total)
		key := groupKey{id: r.GroupID, currency: r.Currency}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, GroupShare{GroupID: r.GroupID, Currency: r.Currency})
			userIndex = append(userIndex, make(map[int64]int))
		}
		g := &groups[gi]
		g.Total += r.Total
		if ui, ok := userIndex[gi][r.UserID]; ok {
			g.Users[ui].Total += r.Total
		} else {
			userIndex[gi][r.UserID] = len(g.Users)
			g.Users = append(g.Users, UserShare{UserID: r.UserID, Total: r.Total})
		}
		if !seenGroup[r.GroupID] {
			seenGroup[r.GroupID] = true
			groupIDs = append(groupIDs, r.GroupID)
		}
		if !seenUser[r.UserID] {
			seenUser[r.UserID] = true
			userIDs = append(userIDs, r.UserID)
		}
	}

	rank := totals.rankIndex()
	if len(rank) == 0 {
		return []GroupShare{}, nil
	}

	groupNames, err := e.lookup(ctx, e.directory.GroupNames, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("group names: %w", err)
	}
	userNames, err := e.lookup(ctx, e.directory.UserNames, userIDs)
	if err != nil {
		return nil, fmt.Errorf("user names: %w", err)
	}

	out := make([]GroupShare, 0, len(groups))
	for _, g := range groups {
		if _, ok := rank[g.Currency]; !ok {
			continue
		}
		g.Name = nameOr(groupNames, g.GroupID, "Group #%d")
		g.Percentage = Percent(g.Total, totals.total(g.Currency))
		g.FormattedAmount = e.money(g.Total, g.Currency)
		for i := range g.Users {
			u := &g.Users[i]
			u.Name = nameOr(userNames, u.UserID, "User #%d")
			u.Percentage = Percent(u.Total, g.Total)
			u.FormattedAmount = e.money(u.Total, g.Currency)
		}
		slices.SortStableFunc(g.Users, func(a, b UserShare) int {
			return cmp.Compare(b.Total, a.Total)
		})
		out = append(out, g)
	}

	slices.SortStableFunc(out, func(a, b GroupShare) int {
		if c := cmp.Compare(rank[a.Currency], rank[b.Currency]); c != 0 {
			return c
		}
		return cmp.Compare(b.Total, a.Total)
	})
	return out, nil
}

func (e *Engine) lookup(ctx context.Context, fn func(context.Context, []int64) (map[int64]string, error), ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	return fn(ctx, ids)
}

func nameOr(names map[int64]string, id int64, fallback string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf(fallback, id)
}
