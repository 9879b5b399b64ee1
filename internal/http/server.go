// Package http serves the JSON API: directory and expense endpoints, the
// dashboard reporting view, health probes and metrics.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"groupspend/internal/core"
	"groupspend/internal/dashboard"
	"groupspend/internal/log"
	"groupspend/internal/middleware/ratelimit"
	"groupspend/internal/middleware/security"
	"groupspend/internal/middleware/trace"
	"groupspend/internal/services"
	"groupspend/internal/storage"
)

// Directory manages users, groups, memberships and categories.
type Directory interface {
	Onboard(ctx context.Context, name, email string) (services.Onboarding, error)
	CreateGroup(ctx context.Context, actorID int64, name string) (core.Group, error)
	AddMember(ctx context.Context, actorID, groupID, userID int64, role core.Role) (core.Membership, error)
	Groups(ctx context.Context, userID int64) ([]core.Group, error)
	CreateCategory(ctx context.Context, actorID, groupID int64, name string) (core.Category, error)
	Categories(ctx context.Context, actorID, groupID int64) ([]core.Category, error)
}

// Expenses records and lists expenses.
type Expenses interface {
	CreateExpense(ctx context.Context, in services.ExpenseInput) (core.Expense, error)
	ListExpenses(ctx context.Context, q storage.ExpenseQuery) (storage.ExpensePage, error)
}

// Preferences stores the dashboard group selection.
type Preferences interface {
	SelectedGroups(ctx context.Context, userID int64) ([]int64, error)
	SetSelectedGroups(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

// Pinger reports whether the ledger is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Recorder receives request counts and exposes the metrics endpoint.
type Recorder interface {
	trace.Recorder
	Handler() http.Handler
}

// Dependencies are the collaborators a Server routes to. Recorder and
// RateLimiter may be nil.
type Dependencies struct {
	Directory   Directory
	Expenses    Expenses
	Preferences Preferences
	Sessions    *dashboard.Registry
	Ledger      Pinger
	Recorder    Recorder
	RateLimiter *ratelimit.Limiter
	Logger      *log.Logger

	// ReportTimeout bounds one dashboard cycle.
	ReportTimeout time.Duration
	// Now replaces time.Now for the default date range, for tests.
	Now func() time.Time
}

type Server struct {
	http.Server

	directory     Directory
	expenses      Expenses
	preferences   Preferences
	sessions      *dashboard.Registry
	ledger        Pinger
	rateLimiter   *ratelimit.Limiter
	detector      *security.Detector
	logger        *log.Logger
	reportTimeout time.Duration
	now           func() time.Time
	started       time.Time
}

// NewServer wires routes and the middleware chain.
func NewServer(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.ReportTimeout <= 0 {
		deps.ReportTimeout = 7 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		directory:     deps.Directory,
		expenses:      deps.Expenses,
		preferences:   deps.Preferences,
		sessions:      deps.Sessions,
		ledger:        deps.Ledger,
		rateLimiter:   deps.RateLimiter,
		detector:      security.NewDetector(deps.Logger),
		logger:        deps.Logger.WithComponent(log.ComponentHTTP),
		reportTimeout: deps.ReportTimeout,
		now:           deps.Now,
		started:       time.Now(),
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/users", s.handleCreateUser)
	api.HandleFunc("GET /api/groups", s.handleListGroups)
	api.HandleFunc("POST /api/groups", s.handleCreateGroup)
	api.HandleFunc("POST /api/groups/{id}/members", s.handleAddMember)
	api.HandleFunc("GET /api/groups/{id}/categories", s.handleListCategories)
	api.HandleFunc("POST /api/groups/{id}/categories", s.handleCreateCategory)
	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("GET /api/preferences/groups", s.handleGetSelectedGroups)
	api.HandleFunc("PUT /api/preferences/groups", s.handleSetSelectedGroups)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/reports/total", s.handleTotalSpent)
	api.HandleFunc("GET /api/reports/categories", s.handleSpentByCategory)
	api.HandleFunc("GET /api/reports/groups", s.handleSpentByGroup)

	var apiHandler http.Handler = api
	if s.rateLimiter != nil {
		apiHandler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		})(apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var recorder trace.Recorder
	if deps.Recorder != nil {
		mux.Handle("GET /metrics", deps.Recorder.Handler())
		recorder = deps.Recorder
	}

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP, recorder).Middleware(handler)
	handler = log.Middleware(deps.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      deps.ReportTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Detector exposes the client-IP extractor so callers can trust more proxies.
func (s *Server) Detector() *security.Detector {
	return s.detector
}

// Shutdown stops accepting requests, drains in-flight ones and releases the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := s.Server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		result = multierror.Append(result, err)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return result.ErrorOrNil()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.ledger == nil {
		checks["ledger"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.ledger.Ping(ctx); err != nil {
		checks["ledger"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}
	if s.sessions != nil {
		checks["dashboard_sessions"] = s.sessions.Len()
	}
	if s.rateLimiter != nil {
		checks["rate_limited_clients"] = s.rateLimiter.ActiveClients()
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
