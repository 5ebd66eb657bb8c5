package models

import (
	"strings"
	"time"

	"vitalrisk/internal/access"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
)

const (
	maxEmailLength = 254
	maxNameLength  = 100
	maxAge         = 150
)

// Profile is the single mutable record per patient.
//
// Invariants:
//   - Email is non-empty and stored lowercased; uniqueness is case-insensitive
//   - Role is user or admin and never changes after construction
//   - RiskScore always equals risk.ComputeRisk(Factors()) for the stored fields
//   - CreatedAt is immutable after construction
type Profile struct {
	ID           id.PatientID `json:"id"`
	Email        string       `json:"email"`
	Role         access.Role  `json:"role"`
	Demographics Demographics `json:"demographics"`
	Clinical     Clinical     `json:"clinical"`
	RiskScore    float64      `json:"risk_score"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Demographics are descriptive fields. Age is the only one that affects the score.
type Demographics struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Gender        string `json:"gender,omitempty"`
	Age           *int   `json:"age,omitempty"`
	WorkType      string `json:"work_type,omitempty"`
	ResidenceType string `json:"residence_type,omitempty"`
	EverMarried   *bool  `json:"ever_married,omitempty"`
}

// Clinical fields are nil until first recorded.
type Clinical struct {
	Hypertension    *bool              `json:"hypertension,omitempty"`
	HeartDisease    *bool              `json:"heart_disease,omitempty"`
	AvgGlucoseLevel *float64           `json:"avg_glucose_level,omitempty"`
	BMI             *float64           `json:"bmi,omitempty"`
	SmokingStatus   risk.SmokingStatus `json:"smoking_status,omitempty"`
	Stroke          *bool              `json:"stroke,omitempty"`
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewProfile constructs a profile and scores it from the supplied fields.
func NewProfile(pid id.PatientID, email string, role access.Role, demo Demographics, now time.Time) (*Profile, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	if len(email) > maxEmailLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is too long")
	}
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role must be user or admin")
	}
	if err := demo.validate(); err != nil {
		return nil, err
	}
	p := &Profile{
		ID:           pid,
		Email:        email,
		Role:         role,
		Demographics: demo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.Rescore()
	return p, nil
}

// Factors projects the fields the risk engine reads.
func (p *Profile) Factors() risk.Factors {
	return risk.Factors{
		Age:             p.Demographics.Age,
		BMI:             p.Clinical.BMI,
		AvgGlucoseLevel: p.Clinical.AvgGlucoseLevel,
		Hypertension:    p.Clinical.Hypertension,
		HeartDisease:    p.Clinical.HeartDisease,
		Stroke:          p.Clinical.Stroke,
		SmokingStatus:   p.Clinical.SmokingStatus,
	}
}

// Rescore recomputes RiskScore from the stored fields.
func (p *Profile) Rescore() {
	p.RiskScore = risk.ComputeRisk(p.Factors())
}

// ScoreIsCurrent reports whether RiskScore matches the stored fields.
func (p *Profile) ScoreIsCurrent() bool {
	return p.RiskScore == risk.ComputeRisk(p.Factors())
}

// Assess returns the full engine output for the stored fields.
func (p *Profile) Assess() risk.Assessment {
	return risk.Assess(p.Factors())
}

// CanApplyClinical validates u against the profile.
// Use with ApplyClinical in Execute callbacks.
func (p *Profile) CanApplyClinical(u ClinicalUpdate) error {
	return u.Validate()
}

// ApplyClinical writes u and recomputes the score in the same step.
func (p *Profile) ApplyClinical(u ClinicalUpdate, now time.Time) {
	c := &p.Clinical
	if u.Hypertension != nil {
		c.Hypertension = u.Hypertension
	}
	if u.HeartDisease != nil {
		c.HeartDisease = u.HeartDisease
	}
	if u.AvgGlucoseLevel != nil {
		c.AvgGlucoseLevel = u.AvgGlucoseLevel
	}
	if u.BMI != nil {
		c.BMI = u.BMI
	}
	if u.SmokingStatus != nil {
		c.SmokingStatus = *u.SmokingStatus
	}
	if u.Stroke != nil {
		c.Stroke = u.Stroke
	}
	p.Rescore()
	p.UpdatedAt = now
}

// CanApplyDemographics validates u against the profile.
func (p *Profile) CanApplyDemographics(u DemographicsUpdate) error {
	return u.Validate()
}

// ApplyDemographics writes u and recomputes the score, since age is scored.
func (p *Profile) ApplyDemographics(u DemographicsUpdate, now time.Time) {
	d := &p.Demographics
	if u.FirstName != nil {
		d.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		d.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.Gender != nil {
		d.Gender = *u.Gender
	}
	if u.Age != nil {
		d.Age = u.Age
	}
	if u.WorkType != nil {
		d.WorkType = *u.WorkType
	}
	if u.ResidenceType != nil {
		d.ResidenceType = *u.ResidenceType
	}
	if u.EverMarried != nil {
		d.EverMarried = u.EverMarried
	}
	p.Rescore()
	p.UpdatedAt = now
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Demographics.Age = cloneInt(p.Demographics.Age)
	c.Demographics.EverMarried = cloneBool(p.Demographics.EverMarried)
	c.Clinical.Hypertension = cloneBool(p.Clinical.Hypertension)
	c.Clinical.HeartDisease = cloneBool(p.Clinical.HeartDisease)
	c.Clinical.Stroke = cloneBool(p.Clinical.Stroke)
	c.Clinical.BMI = cloneFloat(p.Clinical.BMI)
	c.Clinical.AvgGlucoseLevel = cloneFloat(p.Clinical.AvgGlucoseLevel)
	return &c
}

func (d Demographics) validate() error {
	if len(d.FirstName) > maxNameLength || len(d.LastName) > maxNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "name is too long")
	}
	if d.Age != nil && (*d.Age < 0 || *d.Age > maxAge) {
		return dErrors.New(dErrors.CodeInvariantViolation, "age must be between 0 and 150")
	}
	return nil
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
