package models

// Stats backs the admin dashboard.
type Stats struct {
	TotalPatients int        `json:"total_patients"`
	HighRiskCount int        `json:"high_risk_count"`
	AverageRisk   float64    `json:"average_risk"`
	Recent        []*Profile `json:"recent_patients"`
}
