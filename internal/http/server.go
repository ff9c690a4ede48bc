package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"contas/internal/auth"
	"contas/internal/core"
	"contas/internal/log"
	"contas/internal/metrics"
	"contas/internal/middleware/ratelimit"
	"contas/internal/middleware/security"
	"contas/internal/middleware/trace"
	"contas/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Transactions *services.TransactionService
	Entities     *services.EntityService
	Reports      *services.ReportService
	Exchange     *services.ExchangeService
	Verifier     *auth.Verifier
	Logger       *log.Logger
	// Store is pinged by /readyz.
	Store Pinger
	// Files serves signed local receipt URLs under /files/. Nil when
	// receipts live in a remote object store.
	Files http.Handler
}

type Options struct {
	MaxUploadBytes     int64
	ReceiptTTL         time.Duration
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	deps        Deps
	opts        Options
	started     time.Time
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes into a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.ReceiptTTL <= 0 {
		opts.ReceiptTTL = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		deps:        deps,
		opts:        opts,
		started:     time.Now(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:    security.NewDetector(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(trace.Middleware)
	r.Use(log.Middleware(s.deps.Logger, trace.FromRequest))
	r.Use(middleware.Recoverer)
	r.Use(observe)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	if len(s.opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
			ExposedHeaders:   []string{"Content-Disposition", trace.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, core.NotFound("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().Status(http.StatusMethodNotAllowed).Body(errorBody{Error: errorDetail{
			Kind: core.KindValidation, Message: "method not allowed",
		}}).Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if s.deps.Files != nil {
		r.Handle("/files/*", http.StripPrefix("/files", s.deps.Files))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.detector.ClientIP, s.handleRateLimited))
		r.Use(auth.Middleware(s.deps.Verifier, func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, r, core.Unauthorized("a valid session is required"))
		}))

		r.Mount("/companies", s.entityRoutes(core.EntityCompany))
		r.Mount("/counterparties", s.entityRoutes(core.EntityCounterparty))
		r.Mount("/categories", s.entityRoutes(core.EntityCategory))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTransaction)
				r.Put("/", s.handleUpdateTransaction)
				r.Delete("/", s.handleDeleteTransaction)
				r.Get("/receipt", s.handleReceiptURL)
				r.Put("/receipt", s.handleReplaceReceipt)
				r.Delete("/receipt", s.handleRemoveReceipt)
			})
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/by-company", s.handleByCompany)
			r.Get("/by-counterparty", s.handleByCounterparty)
			r.Get("/monthly", s.handleMonthly)
		})

		r.Get("/export/csv", s.handleExportCSV)
		r.Post("/import/csv", s.handleImportCSV)
		r.Get("/import/template", s.handleImportTemplate)
	})
	return r
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	metrics.RateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	NewJSONResponse().Status(http.StatusTooManyRequests).Body(errorBody{Error: errorDetail{
		Kind: core.KindValidation, Message: "too many requests, try again later",
	}}).Write(w)
}

// observe records request metrics under the matched route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
