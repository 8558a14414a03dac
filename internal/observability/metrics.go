package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	FetchesTotal    *prometheus.CounterVec // labels: source, outcome={ok,error,timeout,shape,fallback}
	EventsAdmitted  *prometheus.CounterVec // labels: source
	DuplicatesTotal *prometheus.CounterVec // labels: source
	ParseErrors     *prometheus.CounterVec // labels: source
	AlertsTotal     prometheus.Counter

	CycleDuration   prometheus.Histogram
	PipelineRunning prometheus.Gauge
	WarmedUp        prometheus.Gauge
	DedupSize       prometheus.Gauge

	// Visibility stats recomputed after every merge cycle.
	VisibleCount        prometheus.Gauge
	MaxVisibleMagnitude prometheus.Gauge
	CriticalMode        prometheus.Gauge

	// Auxiliary solar lookup metrics.
	SolarRequests *prometheus.CounterVec // labels: outcome={success,error}
	SolarCache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchesTotal,
		m.EventsAdmitted,
		m.DuplicatesTotal,
		m.ParseErrors,
		m.AlertsTotal,
		m.CycleDuration,
		m.PipelineRunning,
		m.WarmedUp,
		m.DedupSize,
		m.VisibleCount,
		m.MaxVisibleMagnitude,
		m.CriticalMode,
		m.SolarRequests,
		m.SolarCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "fetches_total",
			Help:      "Source fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		EventsAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "events_admitted_total",
			Help:      "Events admitted into the working log by source.",
		}, []string{"source"}),
		DuplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "duplicates_total",
			Help:      "Events suppressed by the deduplication set by source.",
		}, []string{"source"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "parse_errors_total",
			Help:      "Individual records dropped during normalization by source.",
		}, []string{"source"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "alerts_total",
			Help:      "Alert decisions that fired.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-merge-evaluate polling cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "pipeline_running",
			Help:      "1 while the scheduler is active, 0 when shut down.",
		}),
		WarmedUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "warmed_up",
			Help:      "1 once the startup backlog has drained and alert evaluation is enabled.",
		}),
		DedupSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "dedup_size",
			Help:      "Current number of ids tracked by the deduplication set.",
		}),
		VisibleCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "visible_events",
			Help:      "Events passing the active time/radius/magnitude filters.",
		}),
		MaxVisibleMagnitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "max_visible_magnitude",
			Help:      "Largest magnitude among currently visible events.",
		}),
		CriticalMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "critical_mode",
			Help:      "1 while the maximum visible magnitude is at or above the critical threshold.",
		}),
		SolarRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "solar_requests_total",
			Help:      "Sunrise/sunset API requests by outcome.",
		}, []string{"outcome"}),
		SolarCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "solar_cache_total",
			Help:      "Sunrise/sunset cache lookups by result.",
		}, []string{"result"}),
	}
}
