package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"groupspend/internal/events"
	"groupspend/internal/log"
)

// RemoteConsumer delivers events published by other instances. Consume
// blocks until ctx is done or the subscription fails.
type RemoteConsumer interface {
	ConsumeExpenseCreated(ctx context.Context, handler func(context.Context, events.ExpenseCreated) error) error
}

// RemoteProcessorConfig holds configuration for the remote event processor
type RemoteProcessorConfig struct {
	// RetryDelay is the wait before resubscribing after a failure (default: 1s)
	RetryDelay time.Duration

	// MaxRetryDelay caps the doubling retry delay (default: 30s)
	MaxRetryDelay time.Duration
}

func DefaultRemoteProcessorConfig() RemoteProcessorConfig {
	return RemoteProcessorConfig{
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// RemoteProcessor republishes events from other instances on the local bus,
// so their writes invalidate dashboard sessions held here.
type RemoteProcessor struct {
	consumer RemoteConsumer
	bus      *events.Bus
	observer EventObserver
	config   RemoteProcessorConfig
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRemoteProcessor(consumer RemoteConsumer, bus *events.Bus, observer EventObserver, config RemoteProcessorConfig, logger *log.Logger) *RemoteProcessor {
	if logger == nil {
		logger = log.Nop()
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.MaxRetryDelay < config.RetryDelay {
		config.MaxRetryDelay = config.RetryDelay
	}
	return &RemoteProcessor{
		consumer: consumer,
		bus:      bus,
		observer: observer,
		config:   config,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}
}

// Start begins consuming. Returns an error if already running.
func (p *RemoteProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("remote processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	stopCh := p.stopCh
	go func() {
		select {
		case <-stopCh:
		case <-runCtx.Done():
		}
		cancel()
	}()
	go p.run(runCtx, p.doneCh)

	p.logger.InfoContext(ctx, "Remote event processor started")
	return nil
}

// Stop signals the processor and waits for it to exit or ctx to expire.
func (p *RemoteProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Remote event processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Remote event processor stop timed out")
		return ctx.Err()
	}
}

func (p *RemoteProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RemoteProcessor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	delay := p.config.RetryDelay
	for {
		err := p.consumer.ConsumeExpenseCreated(ctx, p.handle)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.ErrorContext(ctx, "Remote subscription failed, retrying",
				log.FieldError, err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, p.config.MaxRetryDelay)
	}
}

func (p *RemoteProcessor) handle(ctx context.Context, evt events.ExpenseCreated) error {
	p.bus.Publish(ctx, evt)
	if p.observer != nil {
		p.observer.ObserveEvent(SourceRemote)
	}
	p.logger.DebugContext(ctx, "Remote expense event applied",
		log.FieldExpenseID, evt.ExpenseID, log.FieldGroupID, evt.GroupID)
	return nil
}
