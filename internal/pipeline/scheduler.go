// Package pipeline drives the periodic fetch → normalize → dedup → alert
// cycle across all upstream sources.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seismoguard/quake-ingest/internal/adapter/feed"
	"github.com/seismoguard/quake-ingest/internal/domain"
	"github.com/seismoguard/quake-ingest/internal/observability"
	"github.com/seismoguard/quake-ingest/internal/store"
)

// Fetcher retrieves one endpoint's raw payload.
type Fetcher interface {
	Fetch(ctx context.Context, ep feed.Endpoint) ([]byte, error)
}

// Notifier receives newly admitted events and fired alert decisions for
// delivery to external observers (rendering surfaces, alert sinks). Calls
// must not block the merge path; implementations own their own timeouts.
type Notifier interface {
	NewEvents(ctx context.Context, events []domain.QuakeEvent)
	Alert(ctx context.Context, ev domain.QuakeEvent, distanceKm float64)
}

// Options tunes the scheduler.
type Options struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration

	// SourceBatchCap caps how many events from one fetch result are
	// considered per cycle.
	SourceBatchCap int

	// WarmupThreshold is the cumulative-admission count past which alert
	// evaluation begins. It gates out the pre-existing backlog already on
	// the wire at startup.
	WarmupThreshold uint64
}

// Scheduler runs the polling cycle: fan out one fetch per source, merge
// results through the deduplication set into the working log, and evaluate
// alerts for newly admitted events. Source failures are isolated; no error
// is fatal and the next cycle is always scheduled.
type Scheduler struct {
	fetcher   Fetcher
	endpoints []feed.Endpoint
	fallbacks map[domain.Source]feed.Endpoint
	dedup     *store.Dedup
	log       *store.EventLog
	session   *domain.SessionState
	notifier  Notifier
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options

	// mergeMu serializes admission into the dedup set and working log;
	// source fetches complete concurrently.
	mergeMu    sync.Mutex
	ready      atomic.Bool
	lastReport atomic.Pointer[CycleReport]
}

// New creates a Scheduler. notifier may be nil. fallbacks maps a source to an
// alternative endpoint tried when the primary fetch fails (the structured
// Kandilli API falls back to the raw KRDAE bulletin).
func New(
	fetcher Fetcher,
	endpoints []feed.Endpoint,
	fallbacks map[domain.Source]feed.Endpoint,
	dedup *store.Dedup,
	log *store.EventLog,
	session *domain.SessionState,
	notifier Notifier,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	opts Options,
) *Scheduler {
	if opts.SourceBatchCap <= 0 {
		opts.SourceBatchCap = 60
	}
	return &Scheduler{
		fetcher:   fetcher,
		endpoints: endpoints,
		fallbacks: fallbacks,
		dedup:     dedup,
		log:       log,
		session:   session,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		opts:      opts,
	}
}

// CheckReadiness returns nil once at least one full polling cycle has
// completed.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no polling cycle has completed yet")
	}
	return nil
}

// LastReport returns the most recent cycle's diagnostic report, or nil before
// the first cycle finishes.
func (s *Scheduler) LastReport() *CycleReport {
	return s.lastReport.Load()
}

// Events returns a newest-first snapshot of the working log.
func (s *Scheduler) Events() []domain.QuakeEvent {
	return s.log.Snapshot()
}

// Stats recomputes the visibility aggregates for the current settings.
func (s *Scheduler) Stats() domain.Stats {
	return domain.VisibleStats(s.log.Snapshot(), s.session.Snapshot(), s.clock.Now())
}

// Run executes polling cycles until the context is cancelled. The first
// cycle starts immediately; subsequent ones tick at RefreshInterval. An
// in-flight cycle finishes after a stop request; it only stops scheduling
// further ones.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"sources", len(s.endpoints),
		"refresh_interval", s.opts.RefreshInterval,
		"warmup_threshold", s.opts.WarmupThreshold,
	)
	s.metrics.PipelineRunning.Set(1)
	defer s.metrics.PipelineRunning.Set(0)

	s.runCycle(ctx)

	ticker := s.clock.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

// runCycle fans out one fetch per source, waits for all of them, and then
// recomputes the visibility stats.
func (s *Scheduler) runCycle(ctx context.Context) {
	start := s.clock.Now()
	reports := make([]SourceReport, len(s.endpoints))

	var wg sync.WaitGroup
	for i, ep := range s.endpoints {
		wg.Add(1)
		go func(i int, ep feed.Endpoint) {
			defer wg.Done()
			reports[i] = s.pollSource(ctx, ep)
		}(i, ep)
	}
	wg.Wait()

	stats := s.Stats()
	s.metrics.VisibleCount.Set(float64(stats.Count))
	s.metrics.MaxVisibleMagnitude.Set(stats.MaxMagnitude)
	s.metrics.CriticalMode.Set(boolGauge(stats.Critical))
	s.metrics.DedupSize.Set(float64(s.dedup.Len()))

	duration := s.clock.Since(start)
	s.metrics.CycleDuration.Observe(duration.Seconds())

	report := &CycleReport{
		StartedAt: start,
		Duration:  duration,
		Sources:   reports,
		Stats:     stats,
	}
	s.lastReport.Store(report)
	s.ready.Store(true)

	s.logger.Info("cycle complete",
		"duration", duration,
		"admitted", report.TotalAdmitted(),
		"visible", stats.Count,
		"max_magnitude", stats.MaxMagnitude,
		"critical", stats.Critical,
	)
}

// pollSource fetches and normalizes one source, then merges the result. A
// failure on the primary endpoint tries the configured fallback before giving
// up on the source for this cycle.
func (s *Scheduler) pollSource(ctx context.Context, ep feed.Endpoint) SourceReport {
	rep := SourceReport{Source: ep.Source}

	events, batch, err := s.fetchAndNormalize(ctx, ep)
	if err != nil {
		if fb, ok := s.fallbacks[ep.Source]; ok {
			s.logger.Warn("source failed, trying fallback",
				"source", ep.Source, "fallback", fb.Source, "error", err)
			s.metrics.FetchesTotal.WithLabelValues(string(ep.Source), "fallback").Inc()
			rep.UsedFallback = true
			events, batch, err = s.fetchAndNormalize(ctx, fb)
		}
	}
	if err != nil {
		rep.Outcome = outcomeFor(err)
		rep.Error = err.Error()
		s.metrics.FetchesTotal.WithLabelValues(string(ep.Source), rep.Outcome).Inc()
		s.logger.Warn("source skipped this cycle", "source", ep.Source, "outcome", rep.Outcome, "error", err)
		return rep
	}

	rep.Outcome = OutcomeOK
	s.metrics.FetchesTotal.WithLabelValues(string(ep.Source), OutcomeOK).Inc()

	rep.Fetched = len(events)
	rep.ParseErrors = len(batch.Dropped)
	for _, re := range batch.Dropped {
		s.metrics.ParseErrors.WithLabelValues(string(re.Source)).Inc()
		s.logger.Debug("record dropped", "source", re.Source, "index", re.Index, "error", re.Err)
	}

	rep.Admitted, rep.Duplicates, rep.Alerts = s.merge(ctx, events)
	return rep
}

func (s *Scheduler) fetchAndNormalize(ctx context.Context, ep feed.Endpoint) ([]domain.QuakeEvent, domain.BatchReport, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	payload, err := s.fetcher.Fetch(fetchCtx, ep)
	if err != nil {
		return nil, domain.BatchReport{Source: ep.Source}, err
	}
	return domain.Normalize(payload, ep.Source)
}

// merge admits a source's batch into the dedup set and working log. Feeds
// report newest-first, so the batch is walked in reverse: oldest events are
// prepended first and the log stays newest-first overall. Once past warm-up,
// each admitted event is evaluated against the current settings.
func (s *Scheduler) merge(ctx context.Context, events []domain.QuakeEvent) (admitted, duplicates, alerts int) {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	if len(events) > s.opts.SourceBatchCap {
		events = events[:s.opts.SourceBatchCap]
	}

	var fresh []domain.QuakeEvent
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if !s.dedup.Admit(ev.ID) {
			duplicates++
			s.metrics.DuplicatesTotal.WithLabelValues(string(ev.Source)).Inc()
			continue
		}
		s.log.Prepend(ev)
		fresh = append(fresh, ev)
		admitted++
		s.metrics.EventsAdmitted.WithLabelValues(string(ev.Source)).Inc()

		if s.dedup.Admitted() <= s.opts.WarmupThreshold {
			continue // still draining the startup backlog
		}
		s.metrics.WarmedUp.Set(1)

		decision := domain.EvaluateAlert(ev, s.session.Snapshot())
		if !decision.Alert {
			continue
		}
		alerts++
		s.metrics.AlertsTotal.Inc()
		s.logger.Info("alert raised",
			"id", ev.ID,
			"source", ev.Source,
			"magnitude", ev.Magnitude,
			"place", ev.Place,
			"distance_km", decision.DistanceKm,
		)
		if s.notifier != nil {
			s.notifier.Alert(ctx, ev, decision.DistanceKm)
		}
	}

	if s.notifier != nil && len(fresh) > 0 {
		s.notifier.NewEvents(ctx, fresh)
	}
	return admitted, duplicates, alerts
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamShape):
		return OutcomeShapeError
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeFetchError
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
