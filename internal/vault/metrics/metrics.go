package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the vault module. Rejections are
// labelled by failure kind so replay attempts and oracle outages show up
// as distinct series.
type Metrics struct {
	VaultsInitialized  prometheus.Counter
	AttestationsIssued *prometheus.CounterVec
	AttestationsUsed   prometheus.Counter
	Rejections         *prometheus.CounterVec
	OracleRotations    prometheus.Counter
	Executions         *prometheus.CounterVec
	ValidateDuration   prometheus.Histogram
	ExecuteDuration    prometheus.Histogram
}

// New registers the vault metrics with reg. A nil reg leaves them
// unregistered, which tests use to build many services per process.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VaultsInitialized: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_vaults_initialized_total",
			Help: "Total number of vaults set up",
		}),
		AttestationsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctuary_attestations_issued_total",
			Help: "Attestations recorded by the oracle, by fresh or reissued",
		}, []string{"mode"}),
		AttestationsUsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_attestations_consumed_total",
			Help: "Attestations consumed by a successful validation",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctuary_rejections_total",
			Help: "Rejected vault operations by operation and failure kind",
		}, []string{"operation", "kind"}),
		OracleRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_oracle_rotations_total",
			Help: "Total number of oracle principal rotations",
		}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanctuary_executions_total",
			Help: "Executions by outcome",
		}, []string{"outcome"}),
		ValidateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sanctuary_validate_duration_seconds",
			Help:    "Duration of validate operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		ExecuteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sanctuary_execute_duration_seconds",
			Help:    "Duration of execute operations including the ledger call",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementVaultInitialized() {
	m.VaultsInitialized.Inc()
}

func (m *Metrics) IncrementIssued(reissued bool) {
	mode := "fresh"
	if reissued {
		mode = "reissued"
	}
	m.AttestationsIssued.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrementConsumed() {
	m.AttestationsUsed.Inc()
}

func (m *Metrics) IncrementRejection(operation, kind string) {
	m.Rejections.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) IncrementOracleRotation() {
	m.OracleRotations.Inc()
}

func (m *Metrics) IncrementExecution(outcome string) {
	m.Executions.WithLabelValues(outcome).Inc()
}

// ObserveValidate records the duration of a validate call started at start.
func (m *Metrics) ObserveValidate(start time.Time) {
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveExecute(start time.Time) {
	m.ExecuteDuration.Observe(time.Since(start).Seconds())
}
