package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Persisted           prometheus.Counter
	Dropped             prometheus.Counter
	PersistFailures     prometheus.Counter
	SinkFailures        prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

// NewMetrics registers the audit metrics with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Persisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_audit_persisted_total",
			Help: "Total number of audit events appended to the store",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_audit_dropped_total",
			Help: "Total number of audit events dropped because the async buffer was full",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
		SinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanctuary_audit_sink_failures_total",
			Help: "Total number of audit events a sink failed to publish",
		}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sanctuary_audit_sink_circuit_state",
			Help: "Current sink circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}

func (m *Metrics) incPersisted() {
	if m != nil {
		m.Persisted.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) incSinkFailures() {
	if m != nil {
		m.SinkFailures.Inc()
	}
}
