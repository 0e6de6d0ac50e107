// Package server exposes the state of a running watch daemon over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/pagewatch/packages/export/metrics"
	"github.com/abdul-hamid-achik/pagewatch/packages/store"
)

// RunStore is the part of the store the server reads
type RunStore interface {
	Ping(ctx context.Context) error
	ListRuns(ctx context.Context, job string, limit int) ([]store.Run, error)
	GetValues(ctx context.Context, job string) (map[string]string, error)
	GetValue(ctx context.Context, job, item string) (string, error)
	SchemaVersion() (uint, error)
}

// Server serves health, metrics and job state
type Server struct {
	store     RunStore
	collector *metrics.Collector
	logger    zerolog.Logger
	http      *http.Server
}

// New creates a server listening on addr
func New(addr string, s RunStore, collector *metrics.Collector, logger zerolog.Logger) *Server {
	srv := &Server{
		store:     s,
		collector: collector,
		logger:    logger.With().Str("component", "server").Logger(),
	}
	srv.http = &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", metrics.NewPrometheusExporter(metrics.WithPrometheusSource(s.collector.GetAggregate)))

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Route("/{job}", func(r chi.Router) {
			r.Get("/values", s.jobValues)
			r.Get("/values/{item}", s.jobValue)
			r.Get("/runs", s.jobRuns)
		})
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("status server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	version, err := s.store.SchemaVersion()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schemaVersion": version})
}

type jobState struct {
	Job       string            `json:"job"`
	URL       string            `json:"url"`
	Changed   bool              `json:"changed"`
	Error     string            `json:"error,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	Duration  float64           `json:"durationMs"`
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	last := s.collector.LastResults()
	jobs := make([]jobState, 0, len(last))
	for _, res := range last {
		jobs = append(jobs, jobState{
			Job:       res.Job,
			URL:       res.URL,
			Changed:   res.Changed,
			Error:     res.Error,
			Values:    res.Values,
			StartedAt: res.StartedAt,
			Duration:  float64(res.Duration) / float64(time.Millisecond),
		})
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) jobValues(w http.ResponseWriter, r *http.Request) {
	values, err := s.store.GetValues(r.Context(), chi.URLParam(r, "job"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

func (s *Server) jobValue(w http.ResponseWriter, r *http.Request) {
	job, item := chi.URLParam(r, "job"), chi.URLParam(r, "item")
	value, err := s.store.GetValue(r.Context(), job, item)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no value stored for " + job + "/" + item})
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"item": item, "value": value})
}

type runView struct {
	ID        string    `json:"id"`
	Job       string    `json:"job"`
	StartedAt time.Time `json:"startedAt"`
	Duration  float64   `json:"durationMs"`
	Changed   int       `json:"changed"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) jobRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), chi.URLParam(r, "job"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{
			ID:        run.ID,
			Job:       run.Job,
			StartedAt: run.StartedAt,
			Duration:  float64(run.Duration) / float64(time.Millisecond),
			Changed:   run.Changed,
			Error:     run.Error,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
