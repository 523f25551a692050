package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts oracle verifier outcomes.
type Metrics struct {
	Verifications *prometheus.CounterVec
	BatchSize     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctuary_oracle_verifications_total",
			Help: "Oracle signature verifications by outcome",
		}, []string{"outcome"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sanctuary_oracle_batch_size",
			Help:    "Number of submissions per oracle batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

func (m *Metrics) IncrementVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBatch(n int) {
	m.BatchSize.Observe(float64(n))
}
