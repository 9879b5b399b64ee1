package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("String() = %s", d)
	}
	if _, err := ParseDate("2024-02-30"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateRange(t *testing.T) {
	t.Run("days inclusive", func(t *testing.T) {
		r, err := NewDateRange(NewDate(2024, 1, 30), NewDate(2024, 2, 2))
		if err != nil {
			t.Fatalf("NewDateRange: %v", err)
		}
		if r.Days() != 4 {
			t.Fatalf("Days() = %d, want 4", r.Days())
		}
		var got []string
		r.Each(func(d Date) { got = append(got, d.String()) })
		want := "2024-01-30,2024-01-31,2024-02-01,2024-02-02"
		if strings.Join(got, ",") != want {
			t.Fatalf("Each = %v", got)
		}
	})

	t.Run("single day", func(t *testing.T) {
		r, err := NewDateRange(NewDate(2024, 3, 5), NewDate(2024, 3, 5))
		if err != nil {
			t.Fatalf("NewDateRange: %v", err)
		}
		if r.Days() != 1 {
			t.Fatalf("Days() = %d, want 1", r.Days())
		}
		if !r.Contains(NewDate(2024, 3, 5)) || r.Contains(NewDate(2024, 3, 6)) {
			t.Fatalf("Contains mismatch")
		}
	})

	t.Run("end before start", func(t *testing.T) {
		if _, err := NewDateRange(NewDate(2024, 3, 5), NewDate(2024, 3, 4)); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("days across centuries", func(t *testing.T) {
		r := DateRange{Start: NewDate(2, 1, 1), End: NewDate(9999, 12, 31)}
		if r.Days() != 3651694 {
			t.Fatalf("Days() = %d, want 3651694", r.Days())
		}
	})

	t.Run("length cap", func(t *testing.T) {
		start := NewDate(2024, 1, 1)
		r, err := NewDateRange(start, start.AddDays(MaxRangeDays-1))
		if err != nil {
			t.Fatalf("NewDateRange at cap: %v", err)
		}
		if r.Days() != MaxRangeDays {
			t.Fatalf("Days() = %d, want %d", r.Days(), MaxRangeDays)
		}
		if _, err := NewDateRange(start, start.AddDays(MaxRangeDays)); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange past cap, got %v", err)
		}
		if _, err := NewDateRange(NewDate(2, 1, 1), NewDate(9999, 12, 31)); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange for centuries, got %v", err)
		}
	})

	t.Run("month range", func(t *testing.T) {
		r := MonthRange(NewDate(2024, 2, 17))
		if r.Start.String() != "2024-02-01" || r.End.String() != "2024-02-29" {
			t.Fatalf("MonthRange = %s", r)
		}
	})
}

func TestParseCurrency(t *testing.T) {
	if c, err := ParseCurrency(" eur "); err != nil || c != EUR {
		t.Fatalf("ParseCurrency(eur) = %q, %v", c, err)
	}
	if _, err := ParseCurrency("GBP"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	if USD.Symbol() != "$" || EUR.Symbol() != "€" {
		t.Fatalf("unexpected symbols")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		GroupID:  1,
		UserID:   2,
		Amount:   Money{Cents: 100},
		Currency: USD,
		Note:     "lunch",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e *Expense)
		want   error
	}{
		{"missing group", func(e *Expense) { e.GroupID = 0 }, ErrMissingGroup},
		{"missing user", func(e *Expense) { e.UserID = 0 }, ErrMissingUser},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{"bad currency", func(e *Expense) { e.Currency = "XYZ" }, ErrInvalidCurrency},
		{"long note", func(e *Expense) { e.Note = strings.Repeat("a", 256) }, ErrNoteTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := good
			tt.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{GroupID: 1, Name: "Food"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{GroupID: 1, Name: "  "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Category{Name: "Food"}).Validate(); !errors.Is(err, ErrMissingGroup) {
		t.Fatalf("expected ErrMissingGroup, got %v", err)
	}
}
