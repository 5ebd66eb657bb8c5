package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks feedback submissions.
type Metrics struct {
	Submitted      *prometheus.CounterVec
	AppendFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalrisk_feedback_submitted_total",
			Help: "Total number of feedback entries recorded, by risk category",
		}, []string{"category"}),
		AppendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_feedback_append_failures_total",
			Help: "Total number of feedback submissions lost to ledger write failures",
		}),
	}
}

func (m *Metrics) IncrementSubmitted(category string) {
	m.Submitted.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementAppendFailures() {
	m.AppendFailures.Inc()
}
