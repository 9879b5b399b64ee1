package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// MaxTextLength bounds notes and category names.
const MaxTextLength = 255

const dateLayout = "2006-01-02"

type (
	Role string

	Currency string

	// Date is a calendar day without time of day, always in UTC.
	Date struct {
		time.Time
	}

	// DateRange is an inclusive [Start, End] span of calendar days.
	DateRange struct {
		Start Date
		End   Date
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID       int64                      `json:"id"`
		Name     string                     `json:"name"`
		Email    string                     `json:"email"`
		Settings map[string]json.RawMessage `json:"settings,omitempty"`
	}

	Group struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Membership struct {
		GroupID int64 `json:"group_id"`
		UserID  int64 `json:"user_id"`
		Role    Role  `json:"role"`
	}

	Category struct {
		ID      int64  `json:"id"`
		GroupID int64  `json:"group_id"`
		Name    string `json:"name"`
	}

	Expense struct {
		ID         int64     `json:"id"`
		GroupID    int64     `json:"group_id"`
		UserID     int64     `json:"user_id"`
		CategoryID *int64    `json:"category_id"` // nil means uncategorized
		Amount     Money     `json:"amount_cents"`
		Currency   Currency  `json:"currency"`
		Note       string    `json:"note"`
		CreatedAt  time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidRange    = errors.New("range end before start")
	ErrInvalidRole     = errors.New("invalid role")
	ErrNoteTooLong     = errors.New("note exceeds 255 characters")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name exceeds 255 characters")
	ErrEmptyEmail      = errors.New("empty email")
	ErrMissingGroup    = errors.New("missing group")
	ErrMissingUser     = errors.New("missing user")
)

// SupportedCurrencies lists the currencies expenses may be recorded in.
var SupportedCurrencies = []Currency{USD, EUR}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

const secondsPerDay = 24 * 60 * 60

// MaxRangeDays bounds the length of a report range.
const MaxRangeDays = 3660

// NewDateRange validates and builds an inclusive range of at most
// MaxRangeDays days.
func NewDateRange(start, end Date) (DateRange, error) {
	if err := start.Validate(); err != nil {
		return DateRange{}, err
	}
	if err := end.Validate(); err != nil {
		return DateRange{}, err
	}
	if end.Before(start.Time) {
		return DateRange{}, ErrInvalidRange
	}
	r := DateRange{Start: start, End: end}
	if r.Days() > MaxRangeDays {
		return DateRange{}, fmt.Errorf("%w: longer than %d days", ErrInvalidRange, MaxRangeDays)
	}
	return r, nil
}

// MonthRange spans the calendar month containing d.
func MonthRange(d Date) DateRange {
	start := NewDate(d.Year(), d.Month(), 1)
	end := start.Time.AddDate(0, 1, -1)
	return DateRange{Start: start, End: Date{Time: end}}
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

// Each calls fn for every day from Start to End in ascending order.
func (r DateRange) Each(fn func(Date)) {
	for d := r.Start; !d.After(r.End.Time); d = d.AddDays(1) {
		fn(d)
	}
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// ParseCurrency accepts a supported ISO 4217 code, case-insensitive.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Currency) Validate() error {
	for _, s := range SupportedCurrencies {
		if c == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
}

// Symbol returns the display sign used in formatted amounts.
func (c Currency) Symbol() string {
	switch c {
	case EUR:
		return "€"
	case USD:
		return "$"
	default:
		return string(c) + " "
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Role) Validate() error {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

func (g Group) Validate() error {
	return validateName(g.Name)
}

func (c Category) Validate() error {
	if c.GroupID == 0 {
		return ErrMissingGroup
	}
	return validateName(c.Name)
}

func (e Expense) Validate() error {
	if e.GroupID == 0 {
		return ErrMissingGroup
	}
	if e.UserID == 0 {
		return ErrMissingUser
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Currency.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(e.Note) > MaxTextLength {
		return ErrNoteTooLong
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxTextLength {
		return ErrNameTooLong
	}
	return nil
}
