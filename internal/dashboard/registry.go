package dashboard

import (
	"cmp"
	"context"
	"time"

	"github.com/google/uuid"

	"groupspend/internal/cache"
	"groupspend/internal/events"
	"groupspend/internal/format"
	"groupspend/internal/log"
	"groupspend/internal/report"
)

// Options configures a Registry.
type Options struct {
	TTL           time.Duration
	MaxSessions   int
	DefaultLocale string
	Observer      cache.Observer
	Logger        *log.Logger
	// OnSizeChange receives the live session count after opens and evictions.
	OnSizeChange func(n int)
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Registry tracks live sessions with a sliding TTL and fans mutation
// events out to all of them.
type Registry struct {
	engine   *report.Engine
	sessions *cache.LRUCache[*Session]
	observer cache.Observer
	logger   *log.Logger
	onSize   func(int)
	locale   string
}

// NewRegistry builds a registry whose sessions run reports on engine.
func NewRegistry(engine *report.Engine, opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	r := &Registry{
		engine:   engine,
		observer: opts.Observer,
		logger:   opts.Logger.WithComponent(log.ComponentDashboard),
		onSize:   opts.OnSizeChange,
		locale:   opts.DefaultLocale,
	}

	lruOpts := []cache.LRUOption[*Session]{
		cache.WithEvictCallback(func(id string, s *Session) {
			r.logger.Debug("Dashboard session evicted", log.FieldSessionID, id, log.FieldUserID, s.UserID())
			r.reportSize()
		}),
	}
	if opts.Now != nil {
		lruOpts = append(lruOpts, cache.WithClock[*Session](opts.Now))
	}
	r.sessions = cache.NewLRUCache[*Session](opts.MaxSessions, opts.TTL, lruOpts...)
	return r
}

// Open starts a new session for userID formatting with locale.
func (r *Registry) Open(userID int64, locale string) *Session {
	id := uuid.NewString()
	engine := r.engine.With(report.WithFormatter(format.ForLocale(cmp.Or(locale, r.locale))))
	s := newSession(id, userID, engine, r.observer, r.logger)
	r.sessions.Set(id, s)
	r.logger.Debug("Dashboard session opened", log.FieldSessionID, id, log.FieldUserID, userID)
	r.reportSize()
	return s
}

// Get returns the live session id if it belongs to userID.
func (r *Registry) Get(id string, userID int64) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := r.sessions.Get(id)
	if !ok || s.UserID() != userID {
		return nil, false
	}
	return s, true
}

// Resume returns the session id for userID, opening a fresh one when it
// is unknown, expired or owned by someone else. The locale is applied to
// an existing session.
func (r *Registry) Resume(id string, userID int64, locale string) (s *Session, created bool) {
	if s, ok := r.Get(id, userID); ok {
		if locale != "" {
			s.SetLocale(format.ParseLocale(locale))
		}
		return s, false
	}
	return r.Open(userID, locale), true
}

// Close ends a session.
func (r *Registry) Close(id string) {
	r.sessions.Delete(id)
	r.reportSize()
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	return r.sessions.Size()
}

// CleanExpired implements cache.Cleaner.
func (r *Registry) CleanExpired() int {
	return r.sessions.CleanExpired()
}

// HandleExpenseCreated implements events.Handler: every live session is
// invalidated before it returns.
func (r *Registry) HandleExpenseCreated(ctx context.Context, evt events.ExpenseCreated) {
	sessions := r.sessions.Values()
	for _, s := range sessions {
		s.HandleExpenseCreated(ctx, evt)
	}
	r.logger.DebugContext(ctx, "Expense event delivered to sessions",
		log.FieldExpenseID, evt.ExpenseID, "sessions", len(sessions))
}

func (r *Registry) reportSize() {
	if r.onSize != nil {
		r.onSize(r.sessions.Size())
	}
}
