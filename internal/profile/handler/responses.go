package handler

import (
	"time"

	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/profile/service"
	"vitalrisk/internal/risk"
)

// ProfileResponse is the HTTP representation of a patient profile.
type ProfileResponse struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	Role         string              `json:"role"`
	Demographics models.Demographics `json:"demographics"`
	Clinical     models.Clinical     `json:"clinical"`
	RiskScore    float64             `json:"risk_score"`
	Category     risk.Tier           `json:"category"`
	Color        string              `json:"color"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// RegisterResponse adds a bearer token for self-registrations.
type RegisterResponse struct {
	Patient     *ProfileResponse `json:"patient"`
	AccessToken string           `json:"access_token,omitempty"`
	TokenType   string           `json:"token_type,omitempty"`
	ExpiresIn   int64            `json:"expires_in,omitempty"`
}

// AnalysisResponse is the HTTP response for POST /patients/{id}/analysis.
type AnalysisResponse struct {
	PatientID string      `json:"patient_id"`
	RiskScore float64     `json:"risk_score"`
	Category  risk.Tier   `json:"category"`
	Color     string      `json:"color"`
	Labels    risk.Labels `json:"labels"`
}

// ProfileListResponse wraps a list of profiles.
type ProfileListResponse struct {
	Patients []*ProfileResponse `json:"patients"`
	Total    int                `json:"total"`
}

func FromProfile(p *models.Profile) *ProfileResponse {
	c := risk.Categorize(p.RiskScore)
	return &ProfileResponse{
		ID:           p.ID.String(),
		Email:        p.Email,
		Role:         p.Role.String(),
		Demographics: p.Demographics,
		Clinical:     p.Clinical,
		RiskScore:    p.RiskScore,
		Category:     c.Tier,
		Color:        c.Color,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func FromProfiles(ps []*models.Profile) *ProfileListResponse {
	out := make([]*ProfileResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromProfile(p))
	}
	return &ProfileListResponse{Patients: out, Total: len(out)}
}

func FromAnalysis(a *service.Analysis) *AnalysisResponse {
	return &AnalysisResponse{
		PatientID: a.Profile.ID.String(),
		RiskScore: a.Assessment.Score,
		Category:  a.Assessment.Category.Tier,
		Color:     a.Assessment.Category.Color,
		Labels:    a.Assessment.Labels,
	}
}
