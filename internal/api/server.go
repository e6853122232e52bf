// Package api serves the portal's JSON API: the approved news feed,
// submissions, moderation, the widget snapshots and job control.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/engine"
	"github.com/khlemanenka99-ai/news-portal/internal/intake"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/storage"
)

// Submitter accepts news from people.
type Submitter interface {
	Submit(ctx context.Context, in intake.SubmissionInput) (string, error)
}

// JobController is the part of the runner the API drives.
type JobController interface {
	Status() []engine.JobStatus
	Trigger(name string) error
}

// Deps are the collaborators of the server. Jobs and Metrics may be nil.
type Deps struct {
	Store   storage.NewsStore
	Intake  Submitter
	Cache   cache.Cache
	Jobs    JobController
	Metrics *observability.Metrics
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	cfg     *config.Config
	router  chi.Router
	httpSrv *http.Server
	logger  *slog.Logger
}

// NewServer builds the router.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("component", "api_server"),
	}
	s.router = s.routes()
	s.httpSrv = &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.API.WriteTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/news", s.handleListNews)
		r.Post("/news", s.handleSubmit)
		r.Get("/news/{id}", s.handleGetNews)
		r.Get("/categories", s.handleCategories)
		r.Get("/widgets", s.handleWidgets)
		r.Get("/jobs", s.handleJobs)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/news/{id}/approve", s.handleModerate(true))
			r.Post("/news/{id}/reject", s.handleModerate(false))
			r.Post("/jobs/{name}/run", s.handleRunJob)
		})
	})

	if s.cfg.Metrics.Enabled && s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.deps.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, &AppError{Code: CodeNotFound, Message: "route not found"})
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until the server stops. A graceful Shutdown is
// not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// requireAdmin checks X-Admin-Token when an admin token is configured.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.cfg.API.AdminToken
		if want != "" {
			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, &AppError{Code: CodeUnauthorized, Message: "admin token required"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
