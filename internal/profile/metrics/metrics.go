package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds profile lifecycle counters and the score distribution.
type Metrics struct {
	ProfilesCreated prometheus.Counter
	ProfilesDeleted prometheus.Counter
	ProfileUpdates  *prometheus.CounterVec
	Analyses        prometheus.Counter
	ScoreDrift      prometheus.Counter
	RiskScores      prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProfilesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_profiles_created_total",
			Help: "Total number of patient profiles created",
		}),
		ProfilesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_profiles_deleted_total",
			Help: "Total number of patient profiles deleted",
		}),
		ProfileUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalrisk_profile_updates_total",
			Help: "Total number of profile updates, by kind",
		}, []string{"kind"}),
		Analyses: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_risk_analyses_total",
			Help: "Total number of explicit risk analyses",
		}),
		ScoreDrift: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalrisk_risk_score_drift_repaired_total",
			Help: "Total number of stored scores found stale and repaired during analysis",
		}),
		RiskScores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitalrisk_risk_score",
			Help:    "Distribution of computed risk scores after writes",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.ProfilesCreated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.ProfilesDeleted.Inc()
}

func (m *Metrics) IncrementUpdated(kind string) {
	m.ProfileUpdates.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementAnalyses() {
	m.Analyses.Inc()
}

func (m *Metrics) IncrementScoreDrift() {
	m.ScoreDrift.Inc()
}

func (m *Metrics) ObserveScore(score float64) {
	m.RiskScores.Observe(score)
}
