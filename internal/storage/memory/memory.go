// Package memory is an in-process implementation of the storage contract,
// used for the memory backend and in tests.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"groupspend/internal/core"
	"groupspend/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	nextID     int64
	users      map[int64]core.User
	groups     map[int64]core.Group
	members    []core.Membership // join order
	categories map[int64]core.Category
	expenses   []core.Expense
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:      make(map[int64]core.User),
		groups:     make(map[int64]core.Group),
		categories: make(map[int64]core.Category),
		now:        time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, storage.ErrDuplicateEmail
		}
	}
	u.ID = s.id()
	u.Settings = nil
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	u.Settings = maps.Clone(u.Settings)
	if u.Settings == nil {
		u.Settings = map[string]json.RawMessage{}
	}
	return u, nil
}

func (s *Store) CreateGroup(_ context.Context, g core.Group) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) AddMember(_ context.Context, m core.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[m.GroupID]; !ok {
		return fmt.Errorf("group %d: %w", m.GroupID, storage.ErrNotFound)
	}
	if _, ok := s.users[m.UserID]; !ok {
		return fmt.Errorf("user %d: %w", m.UserID, storage.ErrNotFound)
	}
	for _, existing := range s.members {
		if existing.GroupID == m.GroupID && existing.UserID == m.UserID {
			return storage.ErrDuplicateMember
		}
	}
	s.members = append(s.members, m)
	return nil
}

func (s *Store) Membership(_ context.Context, groupID, userID int64) (core.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.GroupID == groupID && m.UserID == userID {
			return m, nil
		}
	}
	return core.Membership{}, fmt.Errorf("membership %d/%d: %w", groupID, userID, storage.ErrNotFound)
}

func (s *Store) GroupsForUser(_ context.Context, userID int64) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Group{}
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, s.groups[m.GroupID])
		}
	}
	return out, nil
}

func (s *Store) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	groups, _ := s.GroupsForUser(ctx, userID)
	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[c.GroupID]; !ok {
		return core.Category{}, fmt.Errorf("group %d: %w", c.GroupID, storage.ErrNotFound)
	}
	for _, existing := range s.categories {
		if existing.GroupID == c.GroupID && existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("%q: %w", c.Name, storage.ErrDuplicateCategory)
		}
	}
	c.ID = s.id()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, groupID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Category{}
	for _, c := range s.categories {
		if c.GroupID == groupID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.Category) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[e.GroupID]; !ok {
		return core.Expense{}, fmt.Errorf("group %d: %w", e.GroupID, storage.ErrNotFound)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	if e.CategoryID != nil {
		id := *e.CategoryID
		e.CategoryID = &id
	}
	e.ID = s.id()
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, q storage.ExpenseQuery) (storage.ExpensePage, error) {
	q = q.Normalize()

	s.mu.Lock()
	var rows []core.Expense
	for _, e := range s.expenses {
		if e.UserID == q.UserID {
			rows = append(rows, e)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(rows, func(a, b core.Expense) int {
		var c int
		if q.Sort == storage.SortAmount {
			c = cmp.Compare(a.Amount.Cents, b.Amount.Cents)
		} else {
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		c = cmp.Or(c, cmp.Compare(a.ID, b.ID))
		if q.Desc {
			return -c
		}
		return c
	})

	page := storage.ExpensePage{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    len(rows),
		Expenses: []core.Expense{},
	}
	start := min(q.Offset(), len(rows))
	end := min(start+q.PageSize, len(rows))
	page.Expenses = append(page.Expenses, rows[start:end]...)
	return page, nil
}

func (s *Store) Setting(_ context.Context, userID int64, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	return u.Settings[key], nil
}

func (s *Store) UpdateSetting(_ context.Context, userID int64, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("setting %q: invalid JSON value", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	u.Settings = maps.Clone(u.Settings)
	if u.Settings == nil {
		u.Settings = map[string]json.RawMessage{}
	}
	u.Settings[key] = slices.Clone(value)
	s.users[userID] = u
	return nil
}
