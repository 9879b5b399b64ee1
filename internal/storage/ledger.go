package storage

import (
	"context"
	"database/sql"
	"fmt"

	"groupspend/internal/core"
	"groupspend/internal/report"
)

func (r *SQLiteRepository) SumByDay(ctx context.Context, groupIDs []int64, dates core.DateRange) ([]report.DayTotal, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(groupIDs)
	args = append(args, dates.Start.String(), dates.End.String())

	rows, err := r.db.QueryContext(ctx, `
		SELECT date(created_at) AS day, currency, SUM(amount)
		FROM expenses
		WHERE group_id IN (`+in+`) AND date(created_at) BETWEEN ? AND ?
		GROUP BY day, currency
		ORDER BY day, currency`, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily sums: %w", err)
	}
	defer rows.Close()

	var out []report.DayTotal
	for rows.Next() {
		var day, currency string
		var total int64
		if err := rows.Scan(&day, &currency, &total); err != nil {
			return nil, fmt.Errorf("scan daily sum: %w", err)
		}
		d, err := core.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("daily sum date %q: %w", day, err)
		}
		out = append(out, report.DayTotal{Date: d, Total: total, Currency: core.Currency(currency)})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context, groupIDs []int64, dates core.DateRange) ([]report.CategoryTotal, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(groupIDs)
	args = append(args, dates.Start.String(), dates.End.String())

	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id, currency, SUM(amount)
		FROM expenses
		WHERE group_id IN (`+in+`) AND date(created_at) BETWEEN ? AND ?
		GROUP BY category_id, currency
		ORDER BY category_id, currency`, args...)
	if err != nil {
		return nil, fmt.Errorf("query category sums: %w", err)
	}
	defer rows.Close()

	var out []report.CategoryTotal
	for rows.Next() {
		var (
			category sql.NullInt64
			currency string
			row      report.CategoryTotal
		)
		if err := rows.Scan(&category, &currency, &row.Total); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		if category.Valid {
			id := category.Int64
			row.CategoryID = &id
		}
		row.Currency = core.Currency(currency)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumByGroupAndUser(ctx context.Context, groupIDs []int64, dates core.DateRange) ([]report.GroupUserTotal, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(groupIDs)
	args = append(args, dates.Start.String(), dates.End.String())

	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, user_id, currency, SUM(amount)
		FROM expenses
		WHERE group_id IN (`+in+`) AND date(created_at) BETWEEN ? AND ?
		GROUP BY group_id, user_id, currency
		ORDER BY group_id, user_id, currency`, args...)
	if err != nil {
		return nil, fmt.Errorf("query group sums: %w", err)
	}
	defer rows.Close()

	var out []report.GroupUserTotal
	for rows.Next() {
		var (
			row      report.GroupUserTotal
			currency string
		)
		if err := rows.Scan(&row.GroupID, &row.UserID, &currency, &row.Total); err != nil {
			return nil, fmt.Errorf("scan group sum: %w", err)
		}
		row.Currency = core.Currency(currency)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoryNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return r.names(ctx, "categories", ids)
}

func (r *SQLiteRepository) GroupNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return r.names(ctx, "expense_groups", ids)
}

func (r *SQLiteRepository) UserNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return r.names(ctx, "users", ids)
}

// names maps id to name for one of the fixed tables above.
func (r *SQLiteRepository) names(ctx context.Context, table string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM `+table+` WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s names: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", table, err)
		}
		out[id] = name
	}
	return out, rows.Err()
}
