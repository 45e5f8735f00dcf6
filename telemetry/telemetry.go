package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcome labels.
const (
	OutcomeAnswered        = "answered"
	OutcomeDeclined        = "declined"
	OutcomeNoEvidence      = "no_evidence"
	OutcomeRetrievalError  = "retrieval_error"
	OutcomeGenerationError = "generation_error"
	OutcomeInvalid         = "invalid"
)

// Metrics holds the Prometheus collectors for the query pipeline. A nil
// *Metrics is valid and records nothing, so callers never have to guard.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    *prometheus.CounterVec
	queryDuration   prometheus.Histogram
	confidenceTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline collectors on a private
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kennisbot_queries_total",
			Help: "Queries processed, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kennisbot_query_duration_seconds",
			Help:    "End to end query latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		confidenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kennisbot_answer_confidence_total",
			Help: "Answered queries, by confidence grade.",
		}, []string{"level"}),
	}

	registry.MustRegister(m.queriesTotal, m.queryDuration, m.confidenceTotal)
	return m
}

// ObserveQuery records one finished query.
func (m *Metrics) ObserveQuery(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(seconds)
}

// ObserveConfidence records the confidence grade of an answered query.
func (m *Metrics) ObserveConfidence(level string) {
	if m == nil {
		return
	}
	m.confidenceTotal.WithLabelValues(level).Inc()
}

// Handler exposes the registry for scraping. The host application decides
// where to mount it.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
