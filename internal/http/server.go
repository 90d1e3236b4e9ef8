package http

import (
	"context"
	"net/http"
	"time"

	"finpilot/internal/advisor"
	"finpilot/internal/log"
	"finpilot/internal/middleware/ratelimit"
	"finpilot/internal/middleware/security"
	"finpilot/internal/middleware/trace"
	"finpilot/internal/records"
	"finpilot/internal/services"
)

const defaultMaxStatementBytes = 10 << 20

// Deps are the collaborators the API is served from. Chat, Statements and
// Snapshots may be nil, in which case their routes answer 503.
type Deps struct {
	Store      records.Store
	Builder    *advisor.Builder
	Chat       *services.ChatService
	Statements *services.StatementService
	Snapshots  *services.SnapshotService

	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

// Options tune the HTTP surface.
type Options struct {
	RateLimitPerMinute int
	MaxStatementBytes  int64
	Logger             *log.Logger
}

type Server struct {
	http.Server

	store      records.Store
	builder    *advisor.Builder
	chat       *services.ChatService
	statements *services.StatementService
	snapshots  *services.SnapshotService
	checks     map[string]func(context.Context) error

	limiter           *ratelimit.Limiter
	detector          *security.Detector
	tracer            *trace.Middleware
	maxStatementBytes int64
	started           time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.MaxStatementBytes <= 0 {
		opts.MaxStatementBytes = defaultMaxStatementBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}

	s := &Server{
		store:             deps.Store,
		builder:           deps.Builder,
		chat:              deps.Chat,
		statements:        deps.Statements,
		snapshots:         deps.Snapshots,
		checks:            deps.Checks,
		limiter:           ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:          security.NewDetector(),
		maxStatementBytes: opts.MaxStatementBytes,
		started:           time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, log.NewStructuredLogger(logger))

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/profile", s.withUser(s.handleGetProfile))
	mux.HandleFunc("PUT /api/profile", s.withUser(s.handlePutProfile))

	registerCRUD(mux, s, "/api/assets", assetRecords(s.store))
	registerCRUD(mux, s, "/api/debts", debtRecords(s.store))
	registerCRUD(mux, s, "/api/goals", goalRecords(s.store))
	registerCRUD(mux, s, "/api/insurance", insuranceRecords(s.store))

	mux.HandleFunc("GET /api/expenses/{month}", s.withUser(s.handleGetExpenses))
	mux.HandleFunc("PUT /api/expenses/{month}", s.withUser(s.handlePutExpenses))

	mux.HandleFunc("GET /api/context", s.withUser(s.handleContext))
	mux.HandleFunc("GET /api/projections", s.withUser(s.handleProjections))
	mux.HandleFunc("GET /api/projections/chart.png", s.withUser(s.handleProjectionChart))
	mux.HandleFunc("GET /api/goals/{id}/success", s.withUser(s.handleGoalSuccess))

	mux.HandleFunc("POST /api/chat", s.withUser(s.handleChat))
	mux.HandleFunc("DELETE /api/chat/{session}", s.withUser(s.handleForgetChat))

	mux.HandleFunc("POST /api/statements", s.withUser(s.handleUploadStatement))
	mux.HandleFunc("GET /api/statements/{id}", s.withUser(s.handleStatementStatus))

	mux.HandleFunc("POST /api/snapshots", s.withUser(s.handleExportSnapshot))
	mux.HandleFunc("GET /api/snapshots", s.withUser(s.handleListSnapshots))
}

// middleware wraps h, outermost first: tracing, request logger, security
// headers, suspicious request filter, rate limit on mutating requests.
func (s *Server) middleware(h http.Handler, logger *log.Logger) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating,
		func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldComponent, log.ComponentRateLimit,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		})(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(logger)(h)
	return s.tracer.Middleware(h)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser rejects requests without a caller id and tags the request logger.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userID(r)
		if err != nil {
			ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldUserID, uid)
		next(w, r.WithContext(log.WithLogger(r.Context(), logger)), uid)
	}
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
