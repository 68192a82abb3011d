// Package metrics provides Prometheus metrics for scoring runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Entity outcomes
const (
	OutcomeWritten       = "written"
	OutcomeNullComposite = "null_composite"
	OutcomeRejected      = "rejected"
	OutcomeWriteFailed   = "write_failed"
	OutcomeSkipped       = "skipped"
)

// Manager holds all scoring metrics
// ⭐ SSOT: Prometheus 메트릭 정의는 여기서만
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	entitiesTotal    *prometheus.CounterVec
	issuesTotal      *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	phaseDuration    *prometheus.HistogramVec
	universeSize     *prometheus.GaugeVec
	lastRunTimestamp *prometheus.GaugeVec
}

// Option applies a configuration option to the Manager
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom duration buckets (seconds)
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a manager on its own registry unless WithRegistry is given
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "factorscore",
		buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "runs_total",
		Help:      "Scoring runs by period type and status",
	}, []string{"period", "status"})

	m.entitiesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "entities_total",
		Help:      "Entities processed by outcome",
	}, []string{"period", "outcome"})

	m.issuesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "data_issues_total",
		Help:      "Non-fatal data issues by kind",
	}, []string{"kind"})

	m.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a scoring run",
		Buckets:   m.buckets,
	}, []string{"period"})

	m.phaseDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "phase_duration_seconds",
		Help:      "Duration of the collect and compute phases",
		Buckets:   m.buckets,
	}, []string{"phase"})

	m.universeSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "universe_size",
		Help:      "Entities in the last universe snapshot",
	}, []string{"period"})

	m.lastRunTimestamp = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last finished run",
	}, []string{"period", "status"})
}

// RecordRun records one finished run
func (m *Manager) RecordRun(period, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(period, status).Inc()
	m.runDuration.WithLabelValues(period).Observe(duration.Seconds())
	m.lastRunTimestamp.WithLabelValues(period, status).SetToCurrentTime()
}

// RecordPhase records the duration of one phase ("collect" or "compute")
func (m *Manager) RecordPhase(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordEntity counts one entity outcome
func (m *Manager) RecordEntity(period, outcome string) {
	if m == nil {
		return
	}
	m.entitiesTotal.WithLabelValues(period, outcome).Inc()
}

// AddEntities counts n entities with the same outcome
func (m *Manager) AddEntities(period, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesTotal.WithLabelValues(period, outcome).Add(float64(n))
}

// RecordIssues adds data issue counts by kind
func (m *Manager) RecordIssues(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.issuesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// SetUniverseSize records the snapshot size
func (m *Manager) SetUniverseSize(period string, n int) {
	if m == nil {
		return
	}
	m.universeSize.WithLabelValues(period).Set(float64(n))
}

// Registry returns the underlying registry
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
