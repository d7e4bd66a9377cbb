package pipeline

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds pipeline run metrics in a private registry
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec

	// Prometheus collectors
	registry *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with Prometheus collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crashtruth_runs_total",
				Help: "Total stage runs by outcome",
			},
			[]string{"stage", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crashtruth_run_duration_seconds",
				Help:    "Stage run duration",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
	}
	m.registry.MustRegister(m.runs, m.duration)
	return m
}

// Observe records a finished run. Safe to call on nil Metrics
func (m *Metrics) Observe(stage string, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(stage, string(outcome)).Inc()
	m.duration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
