package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"groupspend/internal/core"
	"groupspend/internal/log"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout keeps created_at readable by SQLite's date() function.
const timeLayout = "2006-01-02 15:04:05.000"

var _ Repository = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath
// and applies pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email) VALUES (?, ?)`, u.Name, u.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	u.Settings = nil
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	var (
		u   core.User
		raw string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, settings FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.Settings, err = decodeSettings(raw); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) (core.Group, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO expense_groups (name) VALUES (?)`, g.Name)
	if err != nil {
		return core.Group{}, fmt.Errorf("insert group: %w", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.Group{}, fmt.Errorf("group id: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_user (group_id, user_id, role) VALUES (?, ?, ?)`,
		m.GroupID, m.UserID, string(m.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("group %d or user %d: %w", m.GroupID, m.UserID, ErrNotFound)
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Membership(ctx context.Context, groupID, userID int64) (core.Membership, error) {
	m := core.Membership{GroupID: groupID, UserID: userID}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM group_user WHERE group_id = ? AND user_id = ?`, groupID, userID).
		Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Membership{}, fmt.Errorf("membership %d/%d: %w", groupID, userID, ErrNotFound)
	}
	if err != nil {
		return core.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	m.Role = core.Role(role)
	return m, nil
}

// GroupsForUser lists the user's groups in the order they were joined.
func (r *SQLiteRepository) GroupsForUser(ctx context.Context, userID int64) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name
		FROM group_user gu
		JOIN expense_groups g ON g.id = gu.group_id
		WHERE gu.user_id = ?
		ORDER BY gu.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user groups: %w", err)
	}
	defer rows.Close()

	groups := []core.Group{}
	for rows.Next() {
		var g core.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *SQLiteRepository) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	groups, err := r.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (group_id, name) VALUES (?, ?)`, c.GroupID, c.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("%q: %w", c.Name, ErrDuplicateCategory)
		}
		if isForeignKeyViolation(err) {
			return core.Category{}, fmt.Errorf("group %d: %w", c.GroupID, ErrNotFound)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, group_id, name FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.GroupID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, groupID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, name FROM categories WHERE group_id = ? ORDER BY name, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)

	var category sql.NullInt64
	if e.CategoryID != nil {
		category = sql.NullInt64{Int64: *e.CategoryID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (group_id, user_id, category_id, amount, currency, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.GroupID, e.UserID, category, e.Amount.Cents, string(e.Currency), e.Note,
		e.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, fmt.Errorf("expense id: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, e.ID,
		log.FieldGroupID, e.GroupID,
		log.FieldAmountCents, e.Amount.Cents,
		log.FieldCurrency, string(e.Currency))
	return e, nil
}

// ListExpenses returns one page of the expenses recorded by q.UserID.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, q ExpenseQuery) (ExpensePage, error) {
	q = q.Normalize()
	page := ExpensePage{Page: q.Page, PageSize: q.PageSize, Expenses: []core.Expense{}}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE user_id = ?`, q.UserID).Scan(&page.Total); err != nil {
		return ExpensePage{}, fmt.Errorf("count expenses: %w", err)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	column := "created_at"
	if q.Sort == SortAmount {
		column = "amount"
	}
	query := fmt.Sprintf(`
		SELECT id, group_id, user_id, category_id, amount, currency, note, created_at
		FROM expenses
		WHERE user_id = ?
		ORDER BY %s %s, id %s
		LIMIT ? OFFSET ?`, column, dir, dir)

	rows, err := r.db.QueryContext(ctx, query, q.UserID, q.PageSize, q.Offset())
	if err != nil {
		return ExpensePage{}, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return ExpensePage{}, err
		}
		page.Expenses = append(page.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		return ExpensePage{}, fmt.Errorf("iterate expenses: %w", err)
	}
	return page, nil
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		e         core.Expense
		category  sql.NullInt64
		currency  string
		createdAt string
	)
	if err := rows.Scan(&e.ID, &e.GroupID, &e.UserID, &category, &e.Amount.Cents,
		&currency, &e.Note, &createdAt); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	if category.Valid {
		id := category.Int64
		e.CategoryID = &id
	}
	e.Currency = core.Currency(currency)
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// inClause returns "?,?,?" for n values and the args slice to go with it.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
