// Package events delivers data-mutation signals to in-process subscribers.
package events

import (
	"context"
	"slices"
	"sync"
	"time"

	"groupspend/internal/core"
)

// ExpenseCreated is published after an expense has been stored.
type ExpenseCreated struct {
	ExpenseID int64         `json:"expense_id"`
	GroupID   int64         `json:"group_id"`
	UserID    int64         `json:"user_id"`
	Amount    int64         `json:"amount"`
	Currency  core.Currency `json:"currency"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewExpenseCreated builds the event for a stored expense.
func NewExpenseCreated(e core.Expense) ExpenseCreated {
	return ExpenseCreated{
		ExpenseID: e.ID,
		GroupID:   e.GroupID,
		UserID:    e.UserID,
		Amount:    e.Amount.Cents,
		Currency:  e.Currency,
		CreatedAt: e.CreatedAt,
	}
}

// Handler receives events synchronously on the publisher's goroutine.
type Handler interface {
	HandleExpenseCreated(ctx context.Context, evt ExpenseCreated)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt ExpenseCreated)

func (f HandlerFunc) HandleExpenseCreated(ctx context.Context, evt ExpenseCreated) {
	f(ctx, evt)
}

// Bus fans events out to every subscriber before Publish returns.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
		})
	}
}

// Publish delivers evt to all subscribers in subscription order.
func (b *Bus) Publish(ctx context.Context, evt ExpenseCreated) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h.HandleExpenseCreated(ctx, evt)
	}
}

// Subscribers returns the number of registered handlers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
