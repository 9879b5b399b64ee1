// Package storage persists users, groups, categories and expenses and
// answers the grouped-sum queries behind the dashboard reports.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"groupspend/internal/core"
	"groupspend/internal/report"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateMember   = errors.New("user already in group")
	ErrDuplicateCategory = errors.New("category already exists in group")
	ErrInvalidQuery      = errors.New("invalid expense query")
)

// SortField names the column an expense listing is ordered by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortAmount    SortField = "amount"
)

// DefaultPageSize is used when an ExpenseQuery leaves PageSize unset.
const DefaultPageSize = 10

// ExpenseQuery selects one page of the expenses recorded by a user.
type ExpenseQuery struct {
	UserID   int64
	Sort     SortField
	Desc     bool
	Page     int // 1-based
	PageSize int
}

// ParseExpenseQuery builds a query from raw request values. Empty values
// fall back to created_at descending, first page.
func ParseExpenseQuery(userID int64, sort, dir string, page int) (ExpenseQuery, error) {
	q := ExpenseQuery{UserID: userID, Sort: SortCreatedAt, Desc: true, Page: page}
	switch SortField(sort) {
	case "":
	case SortCreatedAt, SortAmount:
		q.Sort = SortField(sort)
	default:
		return q, fmt.Errorf("%w: unsupported sort field %q", ErrInvalidQuery, sort)
	}
	switch strings.ToLower(dir) {
	case "", "desc":
	case "asc":
		q.Desc = false
	default:
		return q, fmt.Errorf("%w: unsupported sort direction %q", ErrInvalidQuery, dir)
	}
	return q.Normalize(), nil
}

// Normalize fills in defaults for unset fields.
func (q ExpenseQuery) Normalize() ExpenseQuery {
	if q.Sort == "" {
		q.Sort = SortCreatedAt
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Offset is the number of rows before the requested page.
func (q ExpenseQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// ExpensePage is one page of a listing plus the overall count.
type ExpensePage struct {
	Expenses []core.Expense `json:"expenses"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
}

// HasNext reports whether a later page exists.
func (p ExpensePage) HasNext() bool {
	return p.Page*p.PageSize < p.Total
}

// Repository is the full persistence contract shared by the SQLite and
// memory backends.
type Repository interface {
	report.Ledger
	report.Directory

	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	Setting(ctx context.Context, userID int64, key string) (json.RawMessage, error)
	UpdateSetting(ctx context.Context, userID int64, key string, value json.RawMessage) error

	CreateGroup(ctx context.Context, g core.Group) (core.Group, error)
	AddMember(ctx context.Context, m core.Membership) error
	Membership(ctx context.Context, groupID, userID int64) (core.Membership, error)
	GroupsForUser(ctx context.Context, userID int64) ([]core.Group, error)
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)

	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context, groupID int64) ([]core.Category, error)

	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpenses(ctx context.Context, q ExpenseQuery) (ExpensePage, error)

	Ping(ctx context.Context) error
	Close() error
}
