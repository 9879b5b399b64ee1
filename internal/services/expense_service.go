package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"groupspend/internal/core"
	"groupspend/internal/events"
	"groupspend/internal/log"
	"groupspend/internal/storage"
)

// ExpenseStore is the slice of storage the expense service writes through.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpenses(ctx context.Context, q storage.ExpenseQuery) (storage.ExpensePage, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	Membership(ctx context.Context, groupID, userID int64) (core.Membership, error)
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// RemotePublisher forwards events to other instances.
type RemotePublisher interface {
	PublishExpenseCreated(ctx context.Context, evt events.ExpenseCreated) error
	Close() error
}

// EventObserver counts published events by source.
type EventObserver interface {
	ObserveEvent(source string)
}

// Event sources reported to the EventObserver.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// ExpenseInput is an unvalidated create request.
type ExpenseInput struct {
	UserID     int64
	GroupID    int64  // 0 selects the user's first group
	CategoryID *int64 // nil leaves the expense uncategorized
	Amount     string // major units, e.g. "12.34"
	Currency   string // empty selects the default currency
	Note       string
}

// ExpenseService orchestrates expense writes: store first, then notify the
// local bus and, when configured, other instances.
type ExpenseService struct {
	store           ExpenseStore
	bus             *events.Bus
	remote          RemotePublisher
	observer        EventObserver
	defaultCurrency core.Currency
	logger          *log.Logger
}

type ExpenseOption func(*ExpenseService)

func WithRemotePublisher(p RemotePublisher) ExpenseOption {
	return func(s *ExpenseService) { s.remote = p }
}

func WithEventObserver(o EventObserver) ExpenseOption {
	return func(s *ExpenseService) { s.observer = o }
}

func WithDefaultCurrency(c core.Currency) ExpenseOption {
	return func(s *ExpenseService) { s.defaultCurrency = c }
}

func WithExpenseLogger(l *log.Logger) ExpenseOption {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(store ExpenseStore, bus *events.Bus, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{
		store:           store,
		bus:             bus,
		defaultCurrency: core.USD,
		logger:          log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentExpense)
	return s
}

// CreateExpense validates in, stores it and publishes ExpenseCreated.
// Publish failures are logged; the stored expense is still returned.
func (s *ExpenseService) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e, err := s.build(ctx, in)
	if err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	evt := events.NewExpenseCreated(saved)
	if s.bus != nil {
		s.bus.Publish(ctx, evt)
	}
	if s.observer != nil {
		s.observer.ObserveEvent(SourceLocal)
	}
	if err := s.publishRemote(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, saved.ID, log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Expense created", log.NewFields().
		WithOperation(log.OpCreate).
		WithExpense(saved.ID, saved.GroupID, saved.UserID, saved.Amount.Cents, string(saved.Currency)).
		ToSlice()...)
	return saved, nil
}

func (s *ExpenseService) build(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	if in.UserID == 0 {
		return core.Expense{}, core.ErrMissingUser
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	currency := s.defaultCurrency
	if strings.TrimSpace(in.Currency) != "" {
		if currency, err = core.ParseCurrency(in.Currency); err != nil {
			return core.Expense{}, err
		}
	}

	groupID := in.GroupID
	if groupID == 0 {
		ids, err := s.store.GroupIDsForUser(ctx, in.UserID)
		if err != nil {
			return core.Expense{}, fmt.Errorf("list user groups: %w", err)
		}
		if len(ids) == 0 {
			return core.Expense{}, ErrNoGroup
		}
		groupID = ids[0]
	}

	if err := requireMember(ctx, s.store, groupID, in.UserID); err != nil {
		return core.Expense{}, err
	}

	if in.CategoryID != nil {
		cat, err := s.store.GetCategory(ctx, *in.CategoryID)
		if err != nil {
			return core.Expense{}, fmt.Errorf("get category: %w", err)
		}
		if cat.GroupID != groupID {
			return core.Expense{}, fmt.Errorf("%w: category %d, group %d", ErrCategoryGroupMismatch, cat.ID, groupID)
		}
	}

	e := core.Expense{
		GroupID:    groupID,
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Amount:     amount,
		Currency:   currency,
		Note:       strings.TrimSpace(in.Note),
	}
	return e, e.Validate()
}

func (s *ExpenseService) publishRemote(ctx context.Context, evt events.ExpenseCreated) error {
	if s.remote == nil {
		return nil
	}
	return s.remote.PublishExpenseCreated(ctx, evt)
}

// ListExpenses returns one page of the expenses recorded by q.UserID.
func (s *ExpenseService) ListExpenses(ctx context.Context, q storage.ExpenseQuery) (storage.ExpensePage, error) {
	page, err := s.store.ListExpenses(ctx, q)
	if err != nil {
		return storage.ExpensePage{}, fmt.Errorf("list expenses: %w", err)
	}
	return page, nil
}

// Close releases the remote publisher.
func (s *ExpenseService) Close() error {
	var result *multierror.Error
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("amqp: %w", err))
		}
	}
	return result.ErrorOrNil()
}

type membershipReader interface {
	Membership(ctx context.Context, groupID, userID int64) (core.Membership, error)
}

func requireMember(ctx context.Context, store membershipReader, groupID, userID int64) error {
	_, err := membership(ctx, store, groupID, userID)
	return err
}

func membership(ctx context.Context, store membershipReader, groupID, userID int64) (core.Membership, error) {
	m, err := store.Membership(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Membership{}, fmt.Errorf("%w: user %d, group %d", ErrNotMember, userID, groupID)
	}
	if err != nil {
		return core.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}
