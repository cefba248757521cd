// Package http exposes the daemon's control surface, health checks, and
// Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shufflerd/internal/core"
)

// Controller is the control surface the server fronts. *core.Controller is
// the production implementation.
type Controller interface {
	StartShuffle(ctx context.Context, contextID string) (*core.Status, error)
	StopShuffle() *core.Status
	Status() *core.Status
	ResetPlayCounts(ctx context.Context) (int64, error)
}

type Server struct {
	config     *core.ServerConfig
	logger     *zap.Logger
	server     *http.Server
	controller Controller
	metrics    *Metrics
	registry   *prometheus.Registry
}

type Metrics struct {
	TicksTotal       *prometheus.CounterVec
	TracksAddedTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	SessionActive    prometheus.Gauge
}

type startRequest struct {
	ContextID string `json:"context_id"`
}

func NewServer(config *core.ServerConfig, controller Controller, logger *zap.Logger) *Server {
	metrics := &Metrics{
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shufflerd_ticks_total",
				Help: "Total number of reconciliation ticks",
			},
			[]string{"status"},
		),
		TracksAddedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shufflerd_tracks_added_total",
				Help: "Total number of tracks added to the queue",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shufflerd_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shufflerd_queue_depth",
				Help: "Daemon-managed tracks recognized in the device queue",
			},
		),
		SessionActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shufflerd_session_active",
				Help: "Whether a shuffle session is active (0 or 1)",
			},
		),
	}

	// A server-owned registry keeps metric registration free of package
	// globals and lets multiple instances coexist.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.TicksTotal,
		metrics.TracksAddedTotal,
		metrics.ErrorsTotal,
		metrics.QueueDepth,
		metrics.SessionActive,
	)

	s := &Server{
		config:     config,
		logger:     logger,
		controller: controller,
		metrics:    metrics,
		registry:   registry,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "shufflerd"})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": "shufflerd"})
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /shuffle/start", s.handleStart)
	mux.HandleFunc("POST /shuffle/stop", s.handleStop)
	mux.HandleFunc("GET /shuffle/status", s.handleStatus)
	mux.HandleFunc("POST /playcounts/reset", s.handleReset)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler exposes the routing mux, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil {
		// An empty body means "resolve from current playback".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	status, err := s.controller.StartShuffle(r.Context(), req.ContextID)
	if err != nil {
		s.writeControlError(w, err, status)
		return
	}

	s.metrics.SessionActive.Set(1)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	status := s.controller.StopShuffle()
	s.metrics.SessionActive.Set(0)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	affected, err := s.controller.ResetPlayCounts(r.Context())
	if err != nil {
		s.writeControlError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"records_reset": affected})
}

// writeControlError maps the error taxonomy onto status codes with enough
// detail to tell "not authenticated", "context not shuffleable", and
// "already active" apart.
func (s *Server) writeControlError(w http.ResponseWriter, err error, status *core.Status) {
	var ctxErr *core.ContextUnavailableError

	switch {
	case errors.Is(err, core.ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "not_authenticated",
		})
	case errors.Is(err, core.ErrAlreadyActive):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "already_active",
			"status": status,
		})
	case errors.Is(err, core.ErrNoPlayback):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "no_playback",
			"detail": "nothing is playing; pass a context_id explicitly",
		})
	case errors.Is(err, core.ErrNoActiveDevice):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "no_active_device",
			"detail": "open Spotify on a device first",
		})
	case errors.As(err, &ctxErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":      "context_unavailable",
			"context_id": ctxErr.ContextID,
			"detail":     ctxErr.Reason,
		})
	default:
		s.logger.Error("Control operation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal",
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// RecordTick implements core.Metrics.
func (s *Server) RecordTick(status string) {
	s.metrics.TicksTotal.WithLabelValues(status).Inc()
}

// RecordTrackAdded implements core.Metrics.
func (s *Server) RecordTrackAdded() {
	s.metrics.TracksAddedTotal.Inc()
}

// RecordError implements core.Metrics.
func (s *Server) RecordError(component string) {
	s.metrics.ErrorsTotal.WithLabelValues(component).Inc()
}

// SetQueueDepth implements core.Metrics.
func (s *Server) SetQueueDepth(depth int) {
	s.metrics.QueueDepth.Set(float64(depth))
}
