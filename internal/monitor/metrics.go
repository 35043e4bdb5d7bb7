package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for generation requests
const (
	OutcomeSuccess     = "success"
	OutcomeTransport   = "transport_error"
	OutcomeMalformed   = "malformed_response"
	OutcomeRateLimited = "rate_limited"
)

// Outcome labels for batch groups
const (
	GroupSummarized = "summarized"
	GroupEmpty      = "empty"
	GroupFailed     = "failed"
	GroupCancelled  = "cancelled"
)

// Metrics exports summarizer metrics in Prometheus format.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	groups   *prometheus.CounterVec
	batches  prometheus.Counter
}

// NewMetrics registers summarizer metrics on registry, creating one if nil
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "summarizer",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Total number of generation requests by outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "summarizer",
			Subsystem: "generation",
			Name:      "latency_seconds",
			Help:      "Generation request latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	m.groups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "summarizer",
			Subsystem: "batch",
			Name:      "groups_total",
			Help:      "Total number of record groups by outcome",
		},
		[]string{"outcome"},
	)

	m.batches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "summarizer",
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of record batches processed",
		},
	)

	registry.MustRegister(m.requests, m.latency, m.groups, m.batches)
	return m
}

// ObserveRequest records one generation request
func (m *Metrics) ObserveRequest(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeRateLimited {
		m.latency.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// ObserveGroup records the outcome of one batch group
func (m *Metrics) ObserveGroup(outcome string) {
	if m == nil {
		return
	}
	m.groups.WithLabelValues(outcome).Inc()
}

// ObserveBatch records one processed batch
func (m *Metrics) ObserveBatch() {
	if m == nil {
		return
	}
	m.batches.Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
