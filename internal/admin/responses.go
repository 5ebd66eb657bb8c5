package admin

import (
	"math"
	"time"

	profilemodels "vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
)

// PatientSummaryResponse is the admin view of a profile.
type PatientSummaryResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	RiskScore float64   `json:"risk_score"`
	Category  risk.Tier `json:"category"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// PatientsListResponse wraps the list of patients for HTTP response.
type PatientsListResponse struct {
	Patients []*PatientSummaryResponse `json:"patients"`
	Total    int                       `json:"total"`
}

// DashboardResponse is the HTTP response for GET /admin/dashboard.
type DashboardResponse struct {
	TotalPatients  int                       `json:"total_patients"`
	HighRiskCount  int                       `json:"high_risk_count"`
	AverageRisk    float64                   `json:"average_risk"`
	RecentPatients []*PatientSummaryResponse `json:"recent_patients"`
	TotalFeedback  int                       `json:"total_feedback"`
	AverageRating  float64                   `json:"average_rating"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}

func toPatientSummary(p *profilemodels.Profile) *PatientSummaryResponse {
	c := risk.Categorize(p.RiskScore)
	return &PatientSummaryResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		FirstName: p.Demographics.FirstName,
		LastName:  p.Demographics.LastName,
		Role:      p.Role.String(),
		RiskScore: p.RiskScore,
		Category:  c.Tier,
		Color:     c.Color,
		CreatedAt: p.CreatedAt,
	}
}

func toPatientsList(ps []*profilemodels.Profile) *PatientsListResponse {
	out := make([]*PatientSummaryResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPatientSummary(p))
	}
	return &PatientsListResponse{Patients: out, Total: len(out)}
}

func toDashboard(d *Dashboard) *DashboardResponse {
	resp := &DashboardResponse{
		TotalFeedback: d.Feedback.Count,
		AverageRating: roundTo(d.Feedback.AverageRating, 2),
		GeneratedAt:   d.GeneratedAt,
	}
	if d.Patients != nil {
		resp.TotalPatients = d.Patients.TotalPatients
		resp.HighRiskCount = d.Patients.HighRiskCount
		resp.AverageRisk = roundTo(d.Patients.AverageRisk, 3)
		resp.RecentPatients = toPatientsList(d.Patients.Recent).Patients
	}
	return resp
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
