package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
)

// Defaults for a Server.
const (
	DefaultAnalysisTimeout = 5 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second

	// maxRequestBody bounds the /analyze request body.
	maxRequestBody = 64 * 1024
)

// Error messages returned to clients.
const (
	msgInvalidURL = "Please provide a valid URL (e.g., https://example.com)"
	msgNotFound   = "No privacy policy URL found for the given site."
	msgEmpty      = "A privacy policy was found but no readable text could be extracted."
	msgInternal   = "Internal server error during analysis."
)

// Analyzer runs the analysis of one site. pipeline.Analyze bound to a
// factory satisfies it.
type Analyzer func(ctx context.Context, siteURL string) (*model.Analysis, error)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// AnalyzeResponse is the body of a successful POST /analyze.
type AnalyzeResponse struct {
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the HTTP front end.
type Server struct {
	addr            string
	analyze         Analyzer
	healthChecks    map[string]HealthCheck
	analysisTimeout time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// inflight coalesces concurrent analyses of the same cache key.
	inflight singleflight.Group

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAnalysisTimeout bounds one analysis, independent of the client
// connection.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.analysisTimeout = d
		}
	}
}

// WithHealthCheck adds a named check to GET /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks[name] = check
	}
}

// New creates a Server that answers with analyze.
func New(analyze Analyzer, opts ...Option) *Server {
	s := &Server{
		addr:            config.DefaultListenAddr,
		analyze:         analyze,
		healthChecks:    make(map[string]HealthCheck),
		analysisTimeout: DefaultAnalysisTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidURL)
		return
	}
	if err := config.ValidateTarget(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidURL)
		return
	}

	analysis, shared := s.coalesce(r.Context(), req.URL)
	if shared {
		s.logger.Debug("joined in-flight analysis", "site", req.URL)
	}

	switch analysis.Status {
	case model.StatusCached, model.StatusCompleted:
		writeJSON(w, http.StatusOK, AnalyzeResponse{Summary: analysis.Summary, Source: analysis.Source()})
	case model.StatusNotFound:
		writeError(w, http.StatusNotFound, msgNotFound)
	case model.StatusEmpty:
		writeError(w, http.StatusUnprocessableEntity, msgEmpty)
	default:
		s.logger.Error("analysis failed", "site", req.URL, "error", analysis.ErrorMessage)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// coalesce runs the analysis of siteURL, sharing it with concurrent
// requests for the same cache key. The analysis is detached from the
// requesting connection so one client hanging up does not fail the others.
func (s *Server) coalesce(ctx context.Context, siteURL string) (*model.Analysis, bool) {
	key := database.Key(siteURL)
	v, _, shared := s.inflight.Do(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.analysisTimeout)
		defer cancel()

		analysis, err := s.analyze(runCtx, siteURL)
		if analysis == nil {
			analysis = model.NewAnalysis(siteURL, key)
			analysis.Fail(err)
		}
		return analysis, nil
	})
	return v.(*model.Analysis), shared
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("health check failed", "check", name, "error", err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}

// requestLogger logs each request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client gone
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
