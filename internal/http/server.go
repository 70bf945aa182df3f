package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cartridge/landlord/internal/actor"
	"github.com/cartridge/landlord/internal/health"
	"github.com/cartridge/landlord/internal/metrics"
	"github.com/cartridge/landlord/internal/middleware"
	"github.com/cartridge/landlord/internal/storage"
)

// RunSource exposes the live counters of a training run.
type RunSource interface {
	Snapshot() actor.Status
}

// HealthSource reports whether the run is making progress.
type HealthSource interface {
	State() health.State
}

// Server exposes a read-only view of a training run.
type Server struct {
	run     RunSource
	store   storage.CheckpointStore
	health  HealthSource
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewServer constructs a Server instance. store and monitor may be nil.
func NewServer(run RunSource, store storage.CheckpointStore, monitor HealthSource, collector *metrics.Collector, logger zerolog.Logger) *Server {
	return &Server{
		run:     run,
		store:   store,
		health:  monitor,
		metrics: collector,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Routes builds the HTTP router for the status API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/run", s.handleRun)
		r.Get("/checkpoints", s.handleListCheckpoints)
		r.Get("/checkpoints/{name}", s.handleGetCheckpoint)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("status HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	state := s.health.State()
	status := http.StatusOK
	if state == health.StateStalled {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"status": string(state)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.run.Snapshot())
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, []storage.Checkpoint{})
		return
	}
	list, err := s.store.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if list == nil {
		list = []storage.Checkpoint{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, storage.ErrNotFound.Error())
		return
	}
	cp, err := s.store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		storage.Checkpoint
		Bytes int `json:"bytes"`
	}{cp, len(cp.Data)})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidName):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
