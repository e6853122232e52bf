package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/engine"
	"github.com/khlemanenka99-ai/news-portal/internal/intake"
	"github.com/khlemanenka99-ai/news-portal/internal/jobs"
	"github.com/khlemanenka99-ai/news-portal/internal/storage"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

const maxSubmissionBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
		"store":   s.deps.Store.Name(),
	})
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.Filter{
		Status:  types.StatusApproved,
		Query:   strings.TrimSpace(q.Get("q")),
		PerPage: s.cfg.API.PerPage,
		Page:    1,
	}

	if v := q.Get("category"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 {
			writeError(w, &AppError{Code: CodeValidation, Message: "invalid query", Fields: map[string]string{"category": intake.CodeInvalid}})
			return
		}
		f.CategoryID = id
	}
	if v := q.Get("page"); v != "" {
		// non-numeric pages fall back to the first page like the feed did
		if page, err := strconv.Atoi(v); err == nil {
			f.Page = page
		}
	}

	page, err := s.deps.Store.List(r.Context(), f)
	if err != nil {
		s.internalError(w, "list news", err)
		return
	}
	if page.Items == nil {
		page.Items = []types.NewsItem{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := s.deps.Store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && item.Status != types.StatusApproved) {
		writeError(w, &AppError{Code: CodeNotFound, Message: "news not found"})
		return
	}
	if err != nil {
		s.internalError(w, "get news", err)
		return
	}

	views, err := s.deps.Store.IncrementViews(r.Context(), id)
	if err != nil {
		s.internalError(w, "increment views", err)
		return
	}
	item.Views = views
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in intake.SubmissionInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, &AppError{Code: CodeValidation, Message: "invalid JSON body", Err: err})
		return
	}

	id, err := s.deps.Intake.Submit(r.Context(), in)
	var verrs intake.ValidationErrors
	if errors.As(err, &verrs) {
		writeError(w, &AppError{Code: CodeValidation, Message: "submission is invalid", Fields: verrs})
		return
	}
	if err != nil {
		s.internalError(w, "submit news", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleModerate(approve bool) http.HandlerFunc {
	status := types.StatusRejected
	if approve {
		status = types.StatusApproved
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := s.deps.Store.SetStatus(r.Context(), id, status)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, &AppError{Code: CodeNotFound, Message: "news not found"})
			return
		}
		if err != nil {
			s.internalError(w, "moderate news", err)
			return
		}
		s.logger.Info("news moderated", "id", id, "status", status)
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Store.Categories(r.Context())
	if err != nil {
		s.internalError(w, "list categories", err)
		return
	}
	if cats == nil {
		cats = []types.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// widgets holds the cached snapshots. A key that is absent or expired is
// rendered as null.
type widgets struct {
	Rates   map[string]*float64                `json:"rates"`
	Weather map[string]*types.WeatherSnapshot `json:"weather"`
}

func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := widgets{
		Rates:   make(map[string]*float64, len(s.cfg.Currency.Rates)),
		Weather: make(map[string]*types.WeatherSnapshot, len(s.cfg.Weather.Cities)),
	}

	for _, rate := range s.cfg.Currency.Rates {
		var v float64
		found, err := cache.GetJSON(ctx, s.deps.Cache, rate.Key, &v)
		if err != nil {
			s.logger.Warn("rate unreadable", "key", rate.Key, "error", err)
		}
		if found && err == nil {
			out.Rates[rate.Key] = &v
		} else {
			out.Rates[rate.Key] = nil
		}
	}

	for _, city := range s.cfg.Weather.Cities {
		key := jobs.CityKey(city)
		var snap types.WeatherSnapshot
		found, err := cache.GetJSON(ctx, s.deps.Cache, key, &snap)
		if err != nil {
			s.logger.Warn("weather unreadable", "key", key, "error", err)
		}
		if found && err == nil {
			out.Weather[key] = &snap
		} else {
			out.Weather[key] = nil
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSON(w, http.StatusOK, []engine.JobStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Jobs.Status())
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.deps.Jobs == nil {
		writeError(w, &AppError{Code: CodeUnavailable, Message: "job runner is not running"})
		return
	}

	err := s.deps.Jobs.Trigger(name)
	switch {
	case err == nil:
		s.logger.Info("job triggered", "job", name)
		writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
	case errors.Is(err, types.ErrUnknownJob):
		writeError(w, &AppError{Code: CodeNotFound, Message: "unknown job " + name})
	case errors.Is(err, types.ErrJobRunning):
		writeError(w, &AppError{Code: CodeConflict, Message: "job " + name + " is already running"})
	case errors.Is(err, engine.ErrNotStarted):
		writeError(w, &AppError{Code: CodeUnavailable, Message: "job runner is not running"})
	default:
		s.internalError(w, "trigger job", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeError(w, &AppError{Code: CodeInternal, Message: "an unexpected error occurred"})
}
