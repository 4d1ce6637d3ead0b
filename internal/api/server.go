// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/AutoScrapexter/internal/history"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/monitoring"
	"github.com/valpere/AutoScrapexter/internal/scheduler"
	"github.com/valpere/AutoScrapexter/internal/sources"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Searcher answers hybrid searches.
type Searcher interface {
	Search(ctx context.Context, req listing.SearchRequest) (*listing.SearchResult, error)
}

// JobLister reports scheduled refresh jobs.
type JobLister interface {
	Jobs() []scheduler.JobStatus
}

// Server exposes search over HTTP.
type Server struct {
	config   Config
	searcher Searcher
	logger   utils.Logger
	router   *mux.Router
	limiter  *utils.KeyedRateLimiter

	metrics     *monitoring.Metrics
	metricsPath string
	health      *monitoring.HealthManager
	history     history.Reader
	jobs        JobLister
	sources     []SourceInfo
	maxSize     int
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves them at path.
func WithMetrics(m *monitoring.Metrics, path string) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
	}
}

// WithHealth serves component health at /health.
func WithHealth(h *monitoring.HealthManager) Option {
	return func(s *Server) { s.health = h }
}

// WithHistory serves recent searches at /history.
func WithHistory(r history.Reader) Option {
	return func(s *Server) { s.history = r }
}

// WithJobs serves scheduler status at /jobs.
func WithJobs(j JobLister) Option {
	return func(s *Server) { s.jobs = j }
}

// WithSources lists the configured site profiles at /sources.
func WithSources(profiles []sources.SiteProfile) Option {
	return func(s *Server) {
		s.sources = make([]SourceInfo, 0, len(profiles))
		for _, p := range profiles {
			renderer := p.Renderer
			if renderer == "" {
				renderer = sources.RendererBrowser
			}
			s.sources = append(s.sources, SourceInfo{Name: p.Name, BaseURL: p.BaseURL, Renderer: renderer, MaxPages: p.MaxPages})
		}
	}
}

// WithAdvancedPageSize sets how many results POST /search-advanced returns.
func WithAdvancedPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// NewServer creates the API server and its routes.
func NewServer(config Config, searcher Searcher, logger utils.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	s := &Server{
		config:   config,
		searcher: searcher,
		logger:   logger.WithField("component", "api"),
		limiter:  newLimiter(config),
		maxSize:  100,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.accessLogMiddleware, s.recoveryMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}

	// Search routes are the expensive ones and carry the per-client limit.
	limited := func(h http.HandlerFunc) http.Handler { return s.rateLimitMiddleware(h) }
	r.Handle("/search", limited(s.handleSearchPost)).Methods(http.MethodPost)
	r.Handle("/search", limited(s.handleSearchGet)).Methods(http.MethodGet)
	r.Handle("/search-advanced", limited(s.handleSearchAdvanced)).Methods(http.MethodPost)

	r.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	if s.history != nil {
		r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	}
	if s.jobs != nil {
		r.HandleFunc("/jobs", s.handleJobs).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetRateLimit changes the per-client search limit. A server started
// without a limit keeps none.
func (s *Server) SetRateLimit(rps float64, burst int) {
	if s.limiter != nil && rps > 0 {
		s.limiter.SetLimit(rps, burst)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.config.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
