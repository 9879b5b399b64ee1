// Package dashboard runs reporting cycles for live dashboard sessions.
//
// A Session owns one stat slot per report. Each request is one processing
// cycle: the fingerprint check runs before any read and the fingerprint is
// recorded after the reads. Expense-created events mark every slot stale.
package dashboard

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"groupspend/internal/cache"
	"groupspend/internal/core"
	"groupspend/internal/events"
	"groupspend/internal/filter"
	"groupspend/internal/format"
	"groupspend/internal/log"
	"groupspend/internal/report"
)

// Snapshot is the rendered result of one full dashboard cycle.
type Snapshot struct {
	SessionID       string                 `json:"session_id"`
	GroupIDs        []int64                `json:"group_ids"`
	Start           core.Date              `json:"start"`
	End             core.Date              `json:"end"`
	TotalSpent      report.TotalSpent      `json:"total_spent"`
	SpentByCategory []report.CategoryShare `json:"spent_by_category"`
	SpentByGroup    []report.GroupShare    `json:"spent_by_group"`
}

// Session is a single viewer's dashboard. Its methods serialize on a
// per-session lock; sessions never share stat state.
type Session struct {
	id     string
	userID int64
	logger *log.Logger

	mu         sync.Mutex
	engine     *report.Engine
	locale     language.Tag
	filter     filter.Context
	total      *cache.Stat[report.TotalSpent]
	categories *cache.Stat[[]report.CategoryShare]
	groups     *cache.Stat[[]report.GroupShare]
}

func newSession(id string, userID int64, engine *report.Engine, observer cache.Observer, logger *log.Logger) *Session {
	return &Session{
		id:         id,
		userID:     userID,
		logger:     logger.With(log.FieldSessionID, id, log.FieldUserID, userID),
		engine:     engine,
		locale:     engine.Formatter().Locale(),
		total:      cache.NewStat[report.TotalSpent](report.NameTotalSpent, observer),
		categories: cache.NewStat[[]report.CategoryShare](report.NameSpentByCategory, observer),
		groups:     cache.NewStat[[]report.GroupShare](report.NameSpentByGroup, observer),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() int64 { return s.userID }

// Filter returns the filter of the most recent cycle.
func (s *Session) Filter() filter.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetLocale switches formatting to tag. Cached stats carry formatted
// strings, so a change invalidates them.
func (s *Session) SetLocale(tag language.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tag == s.locale {
		return
	}
	s.locale = tag
	s.engine = s.engine.With(report.WithFormatter(format.New(tag)))
	s.invalidateLocked()
}

// Render runs one cycle computing all three reports. The reports are
// independent and computed concurrently; each one's slot is only touched
// by its own goroutine.
func (s *Session) Render(ctx context.Context, f filter.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := f.Fingerprint()
	s.begin(f, fp)
	defer s.end(fp)

	engine := s.engine
	snap := Snapshot{
		SessionID: s.id,
		GroupIDs:  f.GroupIDs(),
		Start:     f.Range().Start,
		End:       f.Range().End,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.total.Get(gctx, fp, func(ctx context.Context) (report.TotalSpent, error) {
			return engine.TotalSpent(ctx, f)
		})
		snap.TotalSpent = v
		return err
	})
	g.Go(func() error {
		v, err := s.categories.Get(gctx, fp, func(ctx context.Context) ([]report.CategoryShare, error) {
			return engine.SpentByCategory(ctx, f)
		})
		snap.SpentByCategory = v
		return err
	})
	g.Go(func() error {
		v, err := s.groups.Get(gctx, fp, func(ctx context.Context) ([]report.GroupShare, error) {
			return engine.SpentByGroup(ctx, f)
		})
		snap.SpentByGroup = v
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Dashboard cycle failed",
			log.FieldFingerprint, fp, log.FieldError, err)
		return Snapshot{}, err
	}
	return snap, nil
}

// TotalSpent runs a cycle reading only the total-spent report.
func (s *Session) TotalSpent(ctx context.Context, f filter.Context) (report.TotalSpent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := f.Fingerprint()
	s.begin(f, fp)
	defer s.end(fp)
	engine := s.engine
	return s.total.Get(ctx, fp, func(ctx context.Context) (report.TotalSpent, error) {
		return engine.TotalSpent(ctx, f)
	})
}

// SpentByCategory runs a cycle reading only the category report.
func (s *Session) SpentByCategory(ctx context.Context, f filter.Context) ([]report.CategoryShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := f.Fingerprint()
	s.begin(f, fp)
	defer s.end(fp)
	engine := s.engine
	return s.categories.Get(ctx, fp, func(ctx context.Context) ([]report.CategoryShare, error) {
		return engine.SpentByCategory(ctx, f)
	})
}

// SpentByGroup runs a cycle reading only the group report.
func (s *Session) SpentByGroup(ctx context.Context, f filter.Context) ([]report.GroupShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := f.Fingerprint()
	s.begin(f, fp)
	defer s.end(fp)
	engine := s.engine
	return s.groups.Get(ctx, fp, func(ctx context.Context) ([]report.GroupShare, error) {
		return engine.SpentByGroup(ctx, f)
	})
}

// HandleExpenseCreated implements events.Handler.
func (s *Session) HandleExpenseCreated(ctx context.Context, evt events.ExpenseCreated) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
	s.logger.DebugContext(ctx, "Dashboard stats invalidated",
		log.FieldOperation, log.OpInvalidate,
		log.FieldExpenseID, evt.ExpenseID,
		log.FieldGroupID, evt.GroupID)
}

// States reports the slot state per report name.
func (s *Session) States() map[string]cache.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]cache.State{
		s.total.Name():      s.total.State(),
		s.categories.Name(): s.categories.State(),
		s.groups.Name():     s.groups.State(),
	}
}

func (s *Session) begin(f filter.Context, fp string) {
	s.total.Begin(fp)
	s.categories.Begin(fp)
	s.groups.Begin(fp)
	s.filter = f
}

func (s *Session) end(fp string) {
	s.total.End(fp)
	s.categories.End(fp)
	s.groups.End(fp)
}

func (s *Session) invalidateLocked() {
	s.total.Invalidate()
	s.categories.Invalidate()
	s.groups.Invalidate()
}
