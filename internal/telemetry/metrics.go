package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the Loom core.
type Metrics struct {
	CompileTotal        *prometheus.CounterVec
	CompileDurationMs   *prometheus.HistogramVec
	ContextTokens       *prometheus.HistogramVec
	SourceFailureTotal  *prometheus.CounterVec
	RouteTotal          *prometheus.CounterVec
	OutcomeTotal        *prometheus.CounterVec
	ProviderHealthScore *prometheus.GaugeVec
	ProviderAvailable   *prometheus.GaugeVec
	ProbeTotal          *prometheus.CounterVec
	RateLimitTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CompileTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loom_compile_total",
			Help: "Total number of context compilations.",
		}, []string{"task_type", "complexity", "status"}),

		CompileDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loom_compile_duration_ms",
			Help:    "Context compilation duration in milliseconds (including source fetches).",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"task_type"}),

		ContextTokens: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loom_context_tokens",
			Help:    "Estimated tokens in compiled contexts.",
			Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000, 200000},
		}, []string{"model"}),

		SourceFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loom_source_failure_total",
			Help: "Total context source fetch failures, by source.",
		}, []string{"source"}),

		RouteTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loom_route_total",
			Help: "Total routing decisions.",
		}, []string{"provider", "tier", "status"}),

		OutcomeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loom_outcome_total",
			Help: "Total provider outcome reports.",
		}, []string{"provider", "result"}),

		ProviderHealthScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loom_provider_health_score",
			Help: "Composite health score per provider (0.0 to 1.0).",
		}, []string{"provider"}),

		ProviderAvailable: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loom_provider_available",
			Help: "Whether a provider is currently considered available (1 or 0).",
		}, []string{"provider"}),

		ProbeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loom_probe_total",
			Help: "Total health probes, by provider and outcome.",
		}, []string{"provider", "outcome"}),

		RateLimitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loom_rate_limit_total",
			Help: "Total requests rejected by rate limiting.",
		}, []string{"service"}),
	}
}

// RecordCompile records metrics for a completed compilation.
func (m *Metrics) RecordCompile(labels CompileLabels) {
	m.CompileTotal.WithLabelValues(labels.TaskType, labels.Complexity, labels.Status).Inc()
	m.CompileDurationMs.WithLabelValues(labels.TaskType).Observe(labels.DurationMs)
	if labels.Tokens > 0 {
		m.ContextTokens.WithLabelValues(labels.Model).Observe(float64(labels.Tokens))
	}
}

// RecordSourceFailure records a failed fetch from a context source.
func (m *Metrics) RecordSourceFailure(source string) {
	m.SourceFailureTotal.WithLabelValues(source).Inc()
}

// RecordRoute records a routing decision.
func (m *Metrics) RecordRoute(provider, tier, status string) {
	m.RouteTotal.WithLabelValues(provider, tier, status).Inc()
}

// RecordOutcome records a reported provider outcome.
func (m *Metrics) RecordOutcome(provider string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.OutcomeTotal.WithLabelValues(provider, result).Inc()
}

// SetProviderHealth updates the health gauges for a provider.
func (m *Metrics) SetProviderHealth(provider string, score float64, available bool) {
	m.ProviderHealthScore.WithLabelValues(provider).Set(score)
	v := 0.0
	if available {
		v = 1.0
	}
	m.ProviderAvailable.WithLabelValues(provider).Set(v)
}

// RecordProbe records a health probe result.
func (m *Metrics) RecordProbe(provider string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.ProbeTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordRateLimit records a rate-limited request.
func (m *Metrics) RecordRateLimit(service string) {
	m.RateLimitTotal.WithLabelValues(service).Inc()
}

// CompileLabels holds the label values for recording a compilation.
type CompileLabels struct {
	TaskType   string
	Complexity string
	Status     string
	Model      string
	DurationMs float64
	Tokens     int
}
