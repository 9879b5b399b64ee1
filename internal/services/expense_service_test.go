package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"groupspend/internal/core"
	"groupspend/internal/events"
	"groupspend/internal/storage"
	"groupspend/internal/storage/memory"
)

type recordingPublisher struct {
	mu      sync.Mutex
	events  []events.ExpenseCreated
	err     error
	closed  bool
	closeEr error
}

func (p *recordingPublisher) PublishExpenseCreated(_ context.Context, evt events.ExpenseCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return p.closeEr
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveEvent(source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[source]++
}

type fixture struct {
	store  *memory.Store
	dir    *DirectoryService
	ada    Onboarding
	bob    Onboarding
	shared core.Group
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	dir := NewDirectoryService(store, nil)

	ada, err := dir.Onboard(ctx, "Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("Onboard ada: %v", err)
	}
	bob, err := dir.Onboard(ctx, "Bob", "bob@example.com")
	if err != nil {
		t.Fatalf("Onboard bob: %v", err)
	}
	shared, err := dir.CreateGroup(ctx, ada.User.ID, "Trip")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	return fixture{store: store, dir: dir, ada: ada, bob: bob, shared: shared}
}

func TestExpenseService_CreateExpense(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus()
	var delivered []events.ExpenseCreated
	bus.Subscribe(events.HandlerFunc(func(_ context.Context, evt events.ExpenseCreated) {
		delivered = append(delivered, evt)
	}))
	remote := &recordingPublisher{}
	observer := &countingObserver{}
	svc := NewExpenseService(f.store, bus,
		WithRemotePublisher(remote), WithEventObserver(observer), WithDefaultCurrency(core.EUR))

	food := f.ada.Categories[0].ID
	e, err := svc.CreateExpense(context.Background(), ExpenseInput{
		UserID:     f.ada.User.ID,
		CategoryID: &food,
		Amount:     "12,50",
		Note:       "  lunch ",
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if e.ID == 0 || e.GroupID != f.ada.Group.ID {
		t.Fatalf("expense should default to the first group: %+v", e)
	}
	if e.Amount.Cents != 1250 || e.Currency != core.EUR || e.Note != "lunch" {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if len(delivered) != 1 || delivered[0].ExpenseID != e.ID {
		t.Fatalf("bus deliveries = %+v", delivered)
	}
	if len(remote.events) != 1 || remote.events[0].GroupID != e.GroupID {
		t.Fatalf("remote events = %+v", remote.events)
	}
	if observer.counts[SourceLocal] != 1 {
		t.Fatalf("observer counts = %v", observer.counts)
	}
}

func TestExpenseService_RemoteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	svc := NewExpenseService(f.store, events.NewBus(),
		WithRemotePublisher(&recordingPublisher{err: errors.New("broker down")}))

	e, err := svc.CreateExpense(context.Background(), ExpenseInput{UserID: f.ada.User.ID, Amount: "3"})
	if err != nil {
		t.Fatalf("CreateExpense should succeed when the broker fails: %v", err)
	}
	page, err := svc.ListExpenses(context.Background(), storage.ExpenseQuery{UserID: f.ada.User.ID})
	if err != nil || page.Total != 1 || page.Expenses[0].ID != e.ID {
		t.Fatalf("stored expense missing: %+v, %v", page, err)
	}
}

func TestExpenseService_Validation(t *testing.T) {
	f := newFixture(t)
	svc := NewExpenseService(f.store, nil)
	ctx := context.Background()

	foreignCategory := f.bob.Categories[0].ID
	longNote := string(make([]rune, core.MaxTextLength+1))

	tests := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"zero amount", ExpenseInput{UserID: f.ada.User.ID, Amount: "0"}, core.ErrInvalidAmount},
		{"three decimals", ExpenseInput{UserID: f.ada.User.ID, Amount: "1.005"}, core.ErrInvalidAmount},
		{"unsupported currency", ExpenseInput{UserID: f.ada.User.ID, Amount: "1", Currency: "GBP"}, core.ErrInvalidCurrency},
		{"note too long", ExpenseInput{UserID: f.ada.User.ID, Amount: "1", Note: longNote}, core.ErrNoteTooLong},
		{"missing user", ExpenseInput{Amount: "1"}, core.ErrMissingUser},
		{"not a member", ExpenseInput{UserID: f.bob.User.ID, GroupID: f.ada.Group.ID, Amount: "1"}, ErrNotMember},
		{"category from another group", ExpenseInput{UserID: f.ada.User.ID, CategoryID: &foreignCategory, Amount: "1"}, ErrCategoryGroupMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateExpense(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	page, _ := svc.ListExpenses(ctx, storage.ExpenseQuery{UserID: f.ada.User.ID})
	if page.Total != 0 {
		t.Fatalf("rejected expenses were stored: %d", page.Total)
	}
}

func TestExpenseService_UserWithoutGroup(t *testing.T) {
	store := memory.New()
	u, err := store.CreateUser(context.Background(), core.User{Name: "Solo", Email: "solo@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	svc := NewExpenseService(store, nil)
	if _, err := svc.CreateExpense(context.Background(), ExpenseInput{UserID: u.ID, Amount: "1"}); !errors.Is(err, ErrNoGroup) {
		t.Fatalf("got %v, want ErrNoGroup", err)
	}
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := NewExpenseService(nil, nil)
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})

	t.Run("remote close error", func(t *testing.T) {
		remote := &recordingPublisher{closeEr: errors.New("channel closed")}
		service := NewExpenseService(nil, nil, WithRemotePublisher(remote))
		err := service.Close()
		if err == nil || !remote.closed {
			t.Fatalf("expected aggregated close error, got %v", err)
		}
	})
}
