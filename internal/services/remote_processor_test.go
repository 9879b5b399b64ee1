package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"groupspend/internal/events"
)

type scriptedConsumer struct {
	calls atomic.Int32
	evt   events.ExpenseCreated
}

// ConsumeExpenseCreated fails on the first call and delivers one event on
// the second, then blocks until cancelled.
func (c *scriptedConsumer) ConsumeExpenseCreated(ctx context.Context, handler func(context.Context, events.ExpenseCreated) error) error {
	if c.calls.Add(1) == 1 {
		return errors.New("connection refused")
	}
	if err := handler(ctx, c.evt); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRemoteProcessor_ResubscribesAndRepublishes(t *testing.T) {
	bus := events.NewBus()
	got := make(chan events.ExpenseCreated, 1)
	bus.Subscribe(events.HandlerFunc(func(_ context.Context, evt events.ExpenseCreated) {
		got <- evt
	}))

	consumer := &scriptedConsumer{evt: events.ExpenseCreated{ExpenseID: 42, GroupID: 7}}
	observer := &countingObserver{}
	p := NewRemoteProcessor(consumer, bus, observer,
		RemoteProcessorConfig{RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	select {
	case evt := <-got:
		if evt.ExpenseID != 42 {
			t.Fatalf("event = %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote event was not republished")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("processor still running after Stop")
	}
	if consumer.calls.Load() != 2 {
		t.Fatalf("consume calls = %d, want 2", consumer.calls.Load())
	}
	observer.mu.Lock()
	defer observer.mu.Unlock()
	if observer.counts[SourceRemote] != 1 {
		t.Fatalf("observer counts = %v", observer.counts)
	}
}

func TestRemoteProcessor_StopNotRunning(t *testing.T) {
	p := NewRemoteProcessor(&scriptedConsumer{}, events.NewBus(), nil, DefaultRemoteProcessorConfig(), nil)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on idle processor: %v", err)
	}
}
