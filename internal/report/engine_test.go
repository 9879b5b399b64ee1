package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"groupspend/internal/core"
	"groupspend/internal/filter"
)

type fakeLedger struct {
	days       []DayTotal
	categories []CategoryTotal
	groupUsers []GroupUserTotal
	err        error

	dayCalls, categoryCalls, groupCalls int
	lastGroupIDs                        []int64
}

func (f *fakeLedger) SumByDay(_ context.Context, groupIDs []int64, _ core.DateRange) ([]DayTotal, error) {
	f.dayCalls++
	f.lastGroupIDs = groupIDs
	return f.days, f.err
}

func (f *fakeLedger) SumByCategory(_ context.Context, groupIDs []int64, _ core.DateRange) ([]CategoryTotal, error) {
	f.categoryCalls++
	f.lastGroupIDs = groupIDs
	return f.categories, f.err
}

func (f *fakeLedger) SumByGroupAndUser(_ context.Context, groupIDs []int64, _ core.DateRange) ([]GroupUserTotal, error) {
	f.groupCalls++
	f.lastGroupIDs = groupIDs
	return f.groupUsers, f.err
}

func (f *fakeLedger) calls() int { return f.dayCalls + f.categoryCalls + f.groupCalls }

type fakeDirectory struct {
	categories, groups, users map[int64]string
}

func (d fakeDirectory) CategoryNames(_ context.Context, _ []int64) (map[int64]string, error) {
	return d.categories, nil
}

func (d fakeDirectory) GroupNames(_ context.Context, _ []int64) (map[int64]string, error) {
	return d.groups, nil
}

func (d fakeDirectory) UserNames(_ context.Context, _ []int64) (map[int64]string, error) {
	return d.users, nil
}

var directory = fakeDirectory{
	categories: map[int64]string{1: "Food", 2: "Transport", 3: "Gas"},
	groups:     map[int64]string{1: "G1", 2: "G2"},
	users:      map[int64]string{10: "Alice", 11: "Bob"},
}

func ptr(v int64) *int64 { return &v }

func jan(t *testing.T, from, to int) core.DateRange {
	t.Helper()
	r, err := core.NewDateRange(core.NewDate(2024, 1, from), core.NewDate(2024, 1, to))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	return r
}

func TestEmptySelectionSkipsLedger(t *testing.T) {
	ledger := &fakeLedger{}
	engine := NewEngine(ledger, directory)
	f := filter.New(nil, jan(t, 1, 31))
	ctx := context.Background()

	total, err := engine.TotalSpent(ctx, f)
	if err != nil {
		t.Fatalf("TotalSpent: %v", err)
	}
	want := TotalSpent{Total: 0, FormattedTotal: "$0.00", Currency: core.USD, Chart: []ChartPoint{}}
	if diff := cmp.Diff(want, total); diff != "" {
		t.Fatalf("TotalSpent mismatch (-want +got):\n%s", diff)
	}

	cats, err := engine.SpentByCategory(ctx, f)
	if err != nil || len(cats) != 0 {
		t.Fatalf("SpentByCategory = %v, %v", cats, err)
	}
	groups, err := engine.SpentByGroup(ctx, f)
	if err != nil || len(groups) != 0 {
		t.Fatalf("SpentByGroup = %v, %v", groups, err)
	}
	if ledger.calls() != 0 {
		t.Fatalf("ledger queried %d times for empty selection", ledger.calls())
	}
}

func TestTotalSpentZeroFillsEveryDay(t *testing.T) {
	ledger := &fakeLedger{days: []DayTotal{
		{Date: core.NewDate(2024, 1, 2), Total: 1000, Currency: core.USD},
		{Date: core.NewDate(2024, 1, 4), Total: 500, Currency: core.USD},
	}}
	engine := NewEngine(ledger, directory)

	got, err := engine.TotalSpent(context.Background(), filter.New([]int64{2, 1}, jan(t, 1, 5)))
	if err != nil {
		t.Fatalf("TotalSpent: %v", err)
	}
	if got.Total != 1500 || got.FormattedTotal != "$15.00" || got.Currency != core.USD {
		t.Fatalf("unexpected total %+v", got)
	}
	if len(got.Chart) != 5 {
		t.Fatalf("chart has %d points, want 5", len(got.Chart))
	}
	wantAmounts := []float64{0, 10, 0, 5, 0}
	for i, p := range got.Chart {
		if p.Date != core.NewDate(2024, 1, 1+i) {
			t.Fatalf("point %d date %s", i, p.Date)
		}
		if p.Amount != wantAmounts[i] {
			t.Fatalf("point %d amount %v, want %v", i, p.Amount, wantAmounts[i])
		}
	}
	if got.Chart[1].FormattedAmount != "$10.00" || got.Chart[0].FormattedAmount != "$0.00" {
		t.Fatalf("unexpected formatted amounts %+v", got.Chart[:2])
	}
	if diff := cmp.Diff([]int64{1, 2}, ledger.lastGroupIDs); diff != "" {
		t.Fatalf("ledger got unnormalized ids (-want +got):\n%s", diff)
	}
}

func TestTotalSpentStopsOnCancelledContext(t *testing.T) {
	ledger := &fakeLedger{days: []DayTotal{{Date: core.NewDate(2024, 1, 2), Total: 1000, Currency: core.USD}}}
	engine := NewEngine(ledger, directory)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.TotalSpent(ctx, filter.New([]int64{1}, jan(t, 1, 31)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTotalSpentNoRows(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, directory, WithDefaultCurrency(core.EUR))
	got, err := engine.TotalSpent(context.Background(), filter.New([]int64{1}, jan(t, 1, 31)))
	if err != nil {
		t.Fatalf("TotalSpent: %v", err)
	}
	if got.Total != 0 || got.Currency != core.EUR || len(got.Chart) != 0 {
		t.Fatalf("expected empty EUR total, got %+v", got)
	}
}

func TestTotalSpentKeepsCurrenciesApart(t *testing.T) {
	ledger := &fakeLedger{days: []DayTotal{
		{Date: core.NewDate(2024, 1, 1), Total: 300, Currency: core.EUR},
		{Date: core.NewDate(2024, 1, 1), Total: 200, Currency: core.USD},
		{Date: core.NewDate(2024, 1, 2), Total: 900, Currency: core.USD},
	}}
	got, err := NewEngine(ledger, directory).TotalSpent(context.Background(), filter.New([]int64{1}, jan(t, 1, 2)))
	if err != nil {
		t.Fatalf("TotalSpent: %v", err)
	}
	if got.Currency != core.USD || got.Total != 1100 {
		t.Fatalf("dominant currency mismatch %+v", got)
	}
	if got.Chart[0].Amount != 2 || got.Chart[1].Amount != 9 {
		t.Fatalf("chart mixes currencies: %+v", got.Chart)
	}
	want := []CurrencyTotal{{Currency: core.EUR, Total: 300, FormattedTotal: "€3.00"}}
	if diff := cmp.Diff(want, got.Others); diff != "" {
		t.Fatalf("Others mismatch (-want +got):\n%s", diff)
	}
}

func TestSpentByCategory(t *testing.T) {
	tests := []struct {
		name string
		rows []CategoryTotal
		want []CategoryShare
	}{
		{
			name: "food and transport",
			rows: []CategoryTotal{
				{CategoryID: ptr(2), Total: 4000, Currency: core.USD},
				{CategoryID: ptr(1), Total: 6000, Currency: core.USD},
			},
			want: []CategoryShare{
				{CategoryID: ptr(1), Name: "Food", Total: 6000, FormattedAmount: "$60.00", Percentage: 60, Currency: core.USD},
				{CategoryID: ptr(2), Name: "Transport", Total: 4000, FormattedAmount: "$40.00", Percentage: 40, Currency: core.USD},
			},
		},
		{
			name: "nil and unknown categories are uncategorized",
			rows: []CategoryTotal{
				{CategoryID: nil, Total: 500, Currency: core.USD},
				{CategoryID: ptr(99), Total: 1500, Currency: core.USD},
			},
			want: []CategoryShare{
				{CategoryID: ptr(99), Name: UncategorizedName, Total: 1500, FormattedAmount: "$15.00", Percentage: 75, Currency: core.USD},
				{CategoryID: nil, Name: UncategorizedName, Total: 500, FormattedAmount: "$5.00", Percentage: 25, Currency: core.USD},
			},
		},
		{
			name: "ties keep query order",
			rows: []CategoryTotal{
				{CategoryID: ptr(3), Total: 100, Currency: core.USD},
				{CategoryID: ptr(1), Total: 100, Currency: core.USD},
			},
			want: []CategoryShare{
				{CategoryID: ptr(3), Name: "Gas", Total: 100, FormattedAmount: "$1.00", Percentage: 50, Currency: core.USD},
				{CategoryID: ptr(1), Name: "Food", Total: 100, FormattedAmount: "$1.00", Percentage: 50, Currency: core.USD},
			},
		},
		{
			name: "currencies are separate partitions",
			rows: []CategoryTotal{
				{CategoryID: ptr(1), Total: 1000, Currency: core.EUR},
				{CategoryID: ptr(1), Total: 3000, Currency: core.USD},
				{CategoryID: ptr(2), Total: 1000, Currency: core.USD},
			},
			want: []CategoryShare{
				{CategoryID: ptr(1), Name: "Food", Total: 3000, FormattedAmount: "$30.00", Percentage: 75, Currency: core.USD},
				{CategoryID: ptr(2), Name: "Transport", Total: 1000, FormattedAmount: "$10.00", Percentage: 25, Currency: core.USD},
				{CategoryID: ptr(1), Name: "Food", Total: 1000, FormattedAmount: "€10.00", Percentage: 100, Currency: core.EUR},
			},
		},
		{
			name: "zero grand total is empty",
			rows: []CategoryTotal{{CategoryID: ptr(1), Total: 0, Currency: core.USD}},
			want: []CategoryShare{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeLedger{categories: tt.rows}, directory)
			got, err := engine.SpentByCategory(context.Background(), filter.New([]int64{1}, jan(t, 1, 31)))
			if err != nil {
				t.Fatalf("SpentByCategory: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSpentByCategoryTotalsMatchGrandTotal(t *testing.T) {
	rows := []CategoryTotal{
		{CategoryID: ptr(1), Total: 1, Currency: core.USD},
		{CategoryID: ptr(2), Total: 1, Currency: core.USD},
		{CategoryID: ptr(3), Total: 1, Currency: core.USD},
	}
	ledger := &fakeLedger{categories: rows, days: []DayTotal{{Date: core.NewDate(2024, 1, 1), Total: 3, Currency: core.USD}}}
	engine := NewEngine(ledger, directory)
	f := filter.New([]int64{1}, jan(t, 1, 31))

	cats, err := engine.SpentByCategory(context.Background(), f)
	if err != nil {
		t.Fatalf("SpentByCategory: %v", err)
	}
	total, err := engine.TotalSpent(context.Background(), f)
	if err != nil {
		t.Fatalf("TotalSpent: %v", err)
	}

	var sum int64
	pct := 0
	for _, c := range cats {
		sum += c.Total
		pct += c.Percentage
	}
	if sum != total.Total {
		t.Fatalf("category sum %d != grand total %d", sum, total.Total)
	}
	// Independent rounding drifts by at most n-1 points.
	if drift := 100 - pct; drift < -(len(cats)-1) || drift > len(cats)-1 {
		t.Fatalf("percentage drift %d out of bounds", drift)
	}
}

func TestSpentByGroupNestsUsers(t *testing.T) {
	ledger := &fakeLedger{groupUsers: []GroupUserTotal{
		{GroupID: 1, UserID: 10, Total: 3000, Currency: core.USD},
		{GroupID: 1, UserID: 11, Total: 7000, Currency: core.USD},
		{GroupID: 2, UserID: 10, Total: 10000, Currency: core.USD},
	}}
	engine := NewEngine(ledger, directory)

	got, err := engine.SpentByGroup(context.Background(), filter.New([]int64{1, 2}, jan(t, 1, 31)))
	if err != nil {
		t.Fatalf("SpentByGroup: %v", err)
	}
	want := []GroupShare{
		{
			GroupID: 1, Name: "G1", Total: 10000, FormattedAmount: "$100.00", Percentage: 50, Currency: core.USD,
			Users: []UserShare{
				{UserID: 11, Name: "Bob", Total: 7000, FormattedAmount: "$70.00", Percentage: 70},
				{UserID: 10, Name: "Alice", Total: 3000, FormattedAmount: "$30.00", Percentage: 30},
			},
		},
		{
			GroupID: 2, Name: "G2", Total: 10000, FormattedAmount: "$100.00", Percentage: 50, Currency: core.USD,
			Users: []UserShare{
				{UserID: 10, Name: "Alice", Total: 10000, FormattedAmount: "$100.00", Percentage: 100},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSpentByGroupUnknownNames(t *testing.T) {
	ledger := &fakeLedger{groupUsers: []GroupUserTotal{{GroupID: 7, UserID: 70, Total: 100, Currency: core.EUR}}}
	got, err := NewEngine(ledger, directory).SpentByGroup(context.Background(), filter.New([]int64{7}, jan(t, 1, 31)))
	if err != nil {
		t.Fatalf("SpentByGroup: %v", err)
	}
	if got[0].Name != "Group #7" || got[0].Users[0].Name != "User #70" {
		t.Fatalf("unexpected fallback names %+v", got[0])
	}
	if got[0].FormattedAmount != "€1.00" {
		t.Fatalf("unexpected formatting %q", got[0].FormattedAmount)
	}
}

func TestLedgerErrorsPropagate(t *testing.T) {
	boom := errors.New("store unavailable")
	engine := NewEngine(&fakeLedger{err: boom}, directory)
	f := filter.New([]int64{1}, jan(t, 1, 31))
	ctx := context.Background()

	if _, err := engine.TotalSpent(ctx, f); !errors.Is(err, boom) {
		t.Fatalf("TotalSpent err = %v", err)
	}
	if _, err := engine.SpentByCategory(ctx, f); !errors.Is(err, boom) {
		t.Fatalf("SpentByCategory err = %v", err)
	}
	if _, err := engine.SpentByGroup(ctx, f); !errors.Is(err, boom) {
		t.Fatalf("SpentByGroup err = %v", err)
	}
}

type recordingObserver struct{ names []string }

func (r *recordingObserver) ObserveReport(name string, _ time.Duration, _ error) {
	r.names = append(r.names, name)
}

func TestObserverSeesComputations(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(&fakeLedger{}, directory, WithObserver(obs))
	f := filter.New([]int64{1}, jan(t, 1, 31))
	_, _ = engine.TotalSpent(context.Background(), f)
	_, _ = engine.SpentByCategory(context.Background(), f)
	_, _ = engine.SpentByGroup(context.Background(), f)
	if diff := cmp.Diff([]string{NameTotalSpent, NameSpentByCategory, NameSpentByGroup}, obs.names); diff != "" {
		t.Fatalf("observer mismatch (-want +got):\n%s", diff)
	}
}
