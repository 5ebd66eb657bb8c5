package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the best-effort snapshot log.
type Metrics struct {
	Appended              *prometheus.CounterVec
	AppendFailures        prometheus.Counter
	CircuitBreakerDropped prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
	AppendDuration        prometheus.Histogram
}

// New registers history metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalrisk_history_snapshots_appended_total",
			Help: "Total number of snapshots appended, by trigger",
		}, []string{"trigger"}),
		AppendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_history_append_failures_total",
			Help: "Total number of snapshot appends that failed and were dropped",
		}),
		CircuitBreakerDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_history_circuit_breaker_dropped_total",
			Help: "Total number of snapshots dropped without an attempt because the breaker was open",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "vitalrisk_history_circuit_breaker_state",
			Help: "Snapshot store breaker state (0=closed, 1=open)",
		}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitalrisk_history_append_duration_seconds",
			Help:    "Duration of snapshot appends",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncAppended(trigger string) {
	m.Appended.WithLabelValues(trigger).Inc()
}

func (m *Metrics) IncAppendFailures() {
	m.AppendFailures.Inc()
}

func (m *Metrics) IncCircuitBreakerDropped() {
	m.CircuitBreakerDropped.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
		return
	}
	m.CircuitBreakerState.Set(0)
}

// ObserveAppend records an append's duration. Call with time.Now() at the start.
func (m *Metrics) ObserveAppend(start time.Time) {
	m.AppendDuration.Observe(time.Since(start).Seconds())
}
