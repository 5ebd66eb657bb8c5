package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vitalrisk/internal/access"
)

// Metrics tracks authorization refusals.
type Metrics struct {
	Denied *prometheus.CounterVec
}

// New registers access metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Denied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalrisk_access_denied_total",
			Help: "Total number of operations refused by the access gate",
		}, []string{"required_role", "action"}),
	}
}

// IncrementDenied records one refusal.
func (m *Metrics) IncrementDenied(required access.Role, action string) {
	m.Denied.WithLabelValues(string(required), action).Inc()
}
