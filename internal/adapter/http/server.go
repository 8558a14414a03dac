// Package http exposes the service's operational and rendering-facing
// endpoints: health, readiness, metrics, the event/stat surfaces, user
// settings, the alarm-test injector, and the auxiliary solar lookup.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seismoguard/quake-ingest/internal/adapter/solar"
	"github.com/seismoguard/quake-ingest/internal/domain"
	"github.com/seismoguard/quake-ingest/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// EventSource is the read/inject surface the scheduler exposes to renderers.
type EventSource interface {
	Events() []domain.QuakeEvent
	Stats() domain.Stats
	LastReport() *pipeline.CycleReport
	Simulate(ctx context.Context) (domain.QuakeEvent, domain.AlertDecision)
}

// SolarLookup resolves sunrise/sunset for a coordinate pair.
type SolarLookup interface {
	Lookup(ctx context.Context, lat, lon float64) (solar.SunTimes, error)
}

// Server wires the HTTP routes.
type Server struct {
	httpServer *http.Server
	events     EventSource
	session    *domain.SessionState
	solar      SolarLookup
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates the HTTP server. solarClient may be nil to disable the
// /solar route.
func NewServer(
	addr string,
	ready ReadinessChecker,
	events EventSource,
	session *domain.SessionState,
	solarClient SolarLookup,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		events:  events,
		session: session,
		solar:   solarClient,
		clock:   clock,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("PUT /settings", s.handlePutSettings)
	mux.HandleFunc("POST /simulate", s.handleSimulate)
	if solarClient != nil {
		mux.HandleFunc("GET /solar", s.handleSolar)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleEvents returns the working log newest-first. By default the user's
// active time/radius/magnitude filters apply; ?all=true returns everything.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	events := s.events.Events()
	if !all {
		settings := s.session.Snapshot()
		now := s.clock.Now()
		visible := make([]domain.QuakeEvent, 0, len(events))
		for _, ev := range events {
			if domain.Visible(ev, settings, now) {
				visible = append(visible, ev)
			}
		}
		events = visible
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":      s.events.Stats(),
		"last_cycle": s.events.LastReport(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	// Decode over the current snapshot so partial updates keep the other
	// fields unchanged.
	settings := s.session.Snapshot()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid settings payload: " + err.Error()})
		return
	}
	if settings.RadiusKm <= 0 || settings.TimeWindowHours <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "radius_km and time_window_hours must be positive"})
		return
	}
	s.session.Replace(settings)
	s.logger.Info("settings updated",
		"radius_km", settings.RadiusKm,
		"min_magnitude", settings.MinMagnitude,
		"time_window_hours", settings.TimeWindowHours,
	)
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ev, decision := s.events.Simulate(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"event":    ev,
		"decision": decision,
		"arrival":  domain.EstimateArrival(decision.DistanceKm),
	})
}

func (s *Server) handleSolar(w http.ResponseWriter, r *http.Request) {
	settings := s.session.Snapshot()
	st, err := s.solar.Lookup(r.Context(), settings.Latitude, settings.Longitude)
	if err != nil {
		s.logger.Warn("solar lookup failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
