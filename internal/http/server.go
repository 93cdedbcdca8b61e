package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"myfinance/internal/cache"
	"myfinance/internal/ledger"
	applog "myfinance/internal/log"
	"myfinance/internal/middleware/ratelimit"
	"myfinance/internal/middleware/security"
	"myfinance/internal/rates"
	"myfinance/internal/reports"
)

const (
	defaultStatsCacheSize = 128
	defaultStatsCacheTTL  = 5 * time.Minute
	cacheSweepInterval    = time.Minute
)

// RateService is the part of the rates refresher the API needs.
type RateService interface {
	Snapshot() rates.Snapshot
	Refresh(ctx context.Context) rates.Outcome
}

type Options struct {
	Addr              string
	Ledger            *ledger.Service
	Rates             RateService
	Logger            *slog.Logger
	StatsCacheSize    int
	StatsCacheTTL     time.Duration
	RequestsPerMinute int
	// Now is the clock used for "today"; defaults to time.Now
	Now func() time.Time
}

type Server struct {
	http.Server
	ledger *ledger.Service
	rates  RateService
	logger *applog.Logger
	now    func() time.Time

	statsCache  *cache.LRUCache[reports.Statistics]
	caches      *cache.Manager
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StatsCacheSize <= 0 {
		opts.StatsCacheSize = defaultStatsCacheSize
	}
	if opts.StatsCacheTTL <= 0 {
		opts.StatsCacheTTL = defaultStatsCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limiterCfg := ratelimit.DefaultConfig()
	if opts.RequestsPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RequestsPerMinute
	}
	limiterCfg.Logger = logger

	s := &Server{
		ledger:      opts.Ledger,
		rates:       opts.Rates,
		logger:      applog.New(applog.Config{Handler: logger.Handler(), Component: applog.ComponentHTTP}),
		now:         opts.Now,
		statsCache:  cache.NewLRUCache[reports.Statistics](opts.StatsCacheSize, opts.StatsCacheTTL),
		caches:      cache.NewManager(logger),
		rateLimiter: ratelimit.NewLimiter(limiterCfg),
	}
	s.caches.Register(s.statsCache)
	s.caches.StartCleanup(cacheSweepInterval)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(applog.RequestLogging(extractClientIP))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.rateLimiter.Middleware(extractClientIP, handleRateLimited, http.MethodPost))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/rates", s.handleRates)
		r.Post("/rates/refresh", s.handleRefreshRates)
		r.Get("/convert", s.handleConvert)
		r.Get("/overview", s.handleOverview)
		r.Get("/statistics", s.handleStatistics)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
			r.Patch("/{id}/type", s.handleSetTransactionType)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Get("/{id}/transactions", s.handleCategoryTransactions)
		})

		r.Get("/settings/currency", s.handleGetCurrency)
		r.Put("/settings/currency", s.handleSetCurrency)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, applog.ErrorTypeValidation, "method not allowed").Write(w)
	})
	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		st := s.statsCache.Stats()
		s.logger.InfoContext(ctx, "HTTP server shutting down",
			"stats_cache_hits", st.Hits,
			"stats_cache_misses", st.Misses,
			"rate_limited", s.rateLimiter.Rejected(),
			"active_clients", s.rateLimiter.ActiveClients())
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Data(ErrorBody{Error: "rate limit exceeded", Code: "rate_limited"}).
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports ready once a rate table is available.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.rates.Snapshot()
	if !snap.Warm() || !snap.Rates.Complete() {
		ErrorResponse(http.StatusServiceUnavailable, "not_ready", "exchange rates not loaded").Write(w)
		return
	}
	NewJSONResponse().Data(map[string]string{"status": "ready", "outcome": string(snap.Outcome)}).Write(w)
}
