package handler

import (
	"strings"

	"vitalrisk/internal/access"
	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	dErrors "vitalrisk/pkg/domain-errors"
)

// RegisterRequest is the HTTP request body for POST /patients.
type RegisterRequest struct {
	Email         string `json:"email" validate:"required,email,max=254"`
	Role          string `json:"role" validate:"omitempty,oneof=user admin"`
	FirstName     string `json:"first_name" validate:"required,max=100"`
	LastName      string `json:"last_name" validate:"required,max=100"`
	Gender        string `json:"gender" validate:"omitempty,max=32"`
	Age           *int   `json:"age" validate:"omitempty,min=0,max=150"`
	WorkType      string `json:"work_type" validate:"omitempty,max=64"`
	ResidenceType string `json:"residence_type" validate:"omitempty,max=64"`
	EverMarried   *bool  `json:"ever_married"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = models.NormalizeEmail(r.Email)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Gender = strings.TrimSpace(r.Gender)
	r.WorkType = strings.TrimSpace(r.WorkType)
	r.ResidenceType = strings.TrimSpace(r.ResidenceType)
}

func (r *RegisterRequest) ToModel() models.CreateRequest {
	return models.CreateRequest{
		Email: r.Email,
		Role:  access.Role(r.Role),
		Demographics: models.Demographics{
			FirstName:     r.FirstName,
			LastName:      r.LastName,
			Gender:        r.Gender,
			Age:           r.Age,
			WorkType:      r.WorkType,
			ResidenceType: r.ResidenceType,
			EverMarried:   r.EverMarried,
		},
	}
}

// DemographicsRequest is the HTTP request body for PUT /patients/{id}/demographics.
// Unknown fields such as role or email are rejected by the decoder.
type DemographicsRequest struct {
	FirstName     *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName      *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Gender        *string `json:"gender" validate:"omitempty,max=32"`
	Age           *int    `json:"age" validate:"omitempty,min=0,max=150"`
	WorkType      *string `json:"work_type" validate:"omitempty,max=64"`
	ResidenceType *string `json:"residence_type" validate:"omitempty,max=64"`
	EverMarried   *bool   `json:"ever_married"`
}

func (r *DemographicsRequest) Normalize() {
	for _, s := range []*string{r.FirstName, r.LastName, r.Gender, r.WorkType, r.ResidenceType} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func (r *DemographicsRequest) Validate() error {
	if r.ToModel().IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one demographic field is required")
	}
	return nil
}

func (r *DemographicsRequest) ToModel() models.DemographicsUpdate {
	return models.DemographicsUpdate{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Gender:        r.Gender,
		Age:           r.Age,
		WorkType:      r.WorkType,
		ResidenceType: r.ResidenceType,
		EverMarried:   r.EverMarried,
	}
}

// ClinicalRequest is the HTTP request body for PUT /patients/{id}/clinical.
type ClinicalRequest struct {
	Hypertension    *bool    `json:"hypertension"`
	HeartDisease    *bool    `json:"heart_disease"`
	AvgGlucoseLevel *float64 `json:"avg_glucose_level" validate:"omitempty,gte=0,lte=1000"`
	BMI             *float64 `json:"bmi" validate:"omitempty,gte=0,lte=200"`
	SmokingStatus   *string  `json:"smoking_status"`
	Stroke          *bool    `json:"stroke"`

	parsedSmoking *risk.SmokingStatus
}

// Validate resolves smoking_status, accepting legacy numeric codes and
// display labels, into the canonical code.
func (r *ClinicalRequest) Validate() error {
	if r.SmokingStatus != nil {
		status, ok := risk.ParseSmokingStatus(*r.SmokingStatus)
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "smoking_status must be one of [former never current unknown]")
		}
		r.parsedSmoking = &status
	}
	if r.ToModel().IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one clinical field is required")
	}
	return nil
}

func (r *ClinicalRequest) ToModel() models.ClinicalUpdate {
	return models.ClinicalUpdate{
		Hypertension:    r.Hypertension,
		HeartDisease:    r.HeartDisease,
		AvgGlucoseLevel: r.AvgGlucoseLevel,
		BMI:             r.BMI,
		SmokingStatus:   r.parsedSmoking,
		Stroke:          r.Stroke,
	}
}
