package report

import (
	"context"

	"groupspend/internal/core"
)

// Ledger is the grouped-sum query surface of the expense store.
// Date bounds are inclusive. Totals are in minor units.
type Ledger interface {
	SumByDay(ctx context.Context, groupIDs []int64, dates core.DateRange) ([]DayTotal, error)
	SumByCategory(ctx context.Context, groupIDs []int64, dates core.DateRange) ([]CategoryTotal, error)
	SumByGroupAndUser(ctx context.Context, groupIDs []int64, dates core.DateRange) ([]GroupUserTotal, error)
}

// Directory resolves display names for ids found in ledger rows.
// Ids without a name are simply absent from the returned map.
type Directory interface {
	CategoryNames(ctx context.Context, ids []int64) (map[int64]string, error)
	GroupNames(ctx context.Context, ids []int64) (map[int64]string, error)
	UserNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type (
	DayTotal struct {
		Date     core.Date
		Total    int64
		Currency core.Currency
	}

	CategoryTotal struct {
		CategoryID *int64
		Total      int64
		Currency   core.Currency
	}

	GroupUserTotal struct {
		GroupID  int64
		UserID   int64
		Total    int64
		Currency core.Currency
	}
)
