package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/seismoguard/quake-ingest/internal/domain"
)

// NewSimulatedEvent synthesizes a quake near the given location for alarm
// testing: within ±0.25° of the user, magnitude 5.5–7.8, fixed 10 km depth.
func NewSimulatedEvent(s domain.Settings, now time.Time) domain.QuakeEvent {
	lat := s.Latitude + (rand.Float64()-0.5)*0.5
	lon := s.Longitude + (rand.Float64()-0.5)*0.5
	mag := math.Round((5.5+rand.Float64()*(7.8-5.5))*10) / 10

	return domain.QuakeEvent{
		ID:          "sim-" + uuid.NewString(),
		Source:      domain.SourceSimulated,
		Latitude:    lat,
		Longitude:   lon,
		Magnitude:   mag,
		DepthKm:     10.0,
		Place:       "SIMULATION: TEST CENTER",
		OccurredAt:  now.UnixMilli(),
		DisplayTime: now.UTC().Format("15:04:05"),
	}
}

// Simulate injects a synthetic event through the normal admission path and
// evaluates it immediately, bypassing the warm-up gate: a deliberate test
// should always produce its alarm.
func (s *Scheduler) Simulate(ctx context.Context) (domain.QuakeEvent, domain.AlertDecision) {
	settings := s.session.Snapshot()
	ev := NewSimulatedEvent(settings, s.clock.Now())

	s.mergeMu.Lock()
	s.dedup.Admit(ev.ID)
	s.log.Prepend(ev)
	s.mergeMu.Unlock()
	s.metrics.EventsAdmitted.WithLabelValues(string(ev.Source)).Inc()

	decision := domain.EvaluateAlert(ev, settings)
	if decision.Alert {
		s.metrics.AlertsTotal.Inc()
		s.logger.Info("simulated alert raised", "id", ev.ID, "magnitude", ev.Magnitude, "distance_km", decision.DistanceKm)
		if s.notifier != nil {
			s.notifier.Alert(ctx, ev, decision.DistanceKm)
		}
	}
	if s.notifier != nil {
		s.notifier.NewEvents(ctx, []domain.QuakeEvent{ev})
	}
	return ev, decision
}
