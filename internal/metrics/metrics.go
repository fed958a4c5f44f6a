// Package metrics exposes Prometheus instrumentation for the validation
// pipeline and outbound providers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the pipeline and orchestrator update. A nil
// *Metrics is valid and turns every method into a no-op, so tests and the
// one-shot CLI commands don't need a registry.
type Metrics struct {
	validations      *prometheus.CounterVec
	providerAttempts *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	confidenceScore  prometheus.Histogram
	queueDropped     prometheus.Counter
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "validations_total",
			Help:      "Validations processed, by chosen strategy.",
		}, []string{"strategy"}),
		providerAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "provider_attempts_total",
			Help:      "Provider availability checks, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "validator",
			Name:      "provider_latency_seconds",
			Help:      "Wall-clock seconds spent per provider slot, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		confidenceScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "validator",
			Name:      "confidence_score",
			Help:      "Distribution of computed confidence scores.",
			Buckets:   []float64{0, 20, 40, 60, 80, 100},
		}),
		queueDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "learning_jobs_dropped_total",
			Help:      "Background recording jobs dropped because the queue was full.",
		}),
	}
}

// ObserveValidation records one completed validation pass.
func (m *Metrics) ObserveValidation(strategy string, score float64) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(strategy).Inc()
	m.confidenceScore.Observe(score)
}

// ObserveProvider records the outcome and duration of one provider slot.
func (m *Metrics) ObserveProvider(provider string, success bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(seconds)
}

// ObserveQueueDrop records a dropped background recording job.
func (m *Metrics) ObserveQueueDrop() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}
