// Package core provides the domain value types of the expense ledger.
//
// This file contains parsing of user supplied amounts and the conversion
// between minor units (cents) and major units.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal string in major units to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted. At most two
// fractional digits are allowed and the result must be at least 0.01.
//
// Examples:
//
//	ParseAmount("12.34") -> {1234}, nil
//	ParseAmount("12,3")  -> {1230}, nil
//	ParseAmount("1.005") -> error (three decimals)
//	ParseAmount("0")     -> error (below minimum)
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(2)) {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: cents.IntPart()}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Major returns the exact amount in major units.
func (m Money) Major() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// MajorFloat returns the major-unit value for charting and display.
// Totals and percentages are computed on Cents, never on this value.
func (m Money) MajorFloat() float64 {
	return m.Major().InexactFloat64()
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// MarshalJSON encodes Money as its integer minor units.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Cents)
}
