package models

import (
	"math"
	"strings"

	"vitalrisk/internal/access"
	"vitalrisk/internal/risk"
	dErrors "vitalrisk/pkg/domain-errors"
)

// ClinicalUpdate is a partial write of clinical fields. Nil leaves a field as is.
type ClinicalUpdate struct {
	Hypertension    *bool
	HeartDisease    *bool
	AvgGlucoseLevel *float64
	BMI             *float64
	SmokingStatus   *risk.SmokingStatus
	Stroke          *bool
}

// Validate rejects malformed values before any write.
func (u ClinicalUpdate) Validate() error {
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one clinical field is required")
	}
	if u.BMI != nil && !inRange(*u.BMI, 0, 200) {
		return dErrors.New(dErrors.CodeValidation, "bmi must be between 0 and 200")
	}
	if u.AvgGlucoseLevel != nil && !inRange(*u.AvgGlucoseLevel, 0, 1000) {
		return dErrors.New(dErrors.CodeValidation, "avg_glucose_level must be between 0 and 1000")
	}
	if u.SmokingStatus != nil && !u.SmokingStatus.Valid() {
		return dErrors.New(dErrors.CodeValidation, "smoking_status must be one of [former never current unknown]")
	}
	return nil
}

func (u ClinicalUpdate) IsEmpty() bool {
	return u.Hypertension == nil && u.HeartDisease == nil && u.AvgGlucoseLevel == nil &&
		u.BMI == nil && u.SmokingStatus == nil && u.Stroke == nil
}

// DemographicsUpdate is a partial write of demographic fields. It has no
// email or role field; both are fixed at creation.
type DemographicsUpdate struct {
	FirstName     *string
	LastName      *string
	Gender        *string
	Age           *int
	WorkType      *string
	ResidenceType *string
	EverMarried   *bool
}

func (u DemographicsUpdate) Validate() error {
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one demographic field is required")
	}
	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) == "" {
		return dErrors.New(dErrors.CodeValidation, "first_name cannot be blank")
	}
	if u.LastName != nil && strings.TrimSpace(*u.LastName) == "" {
		return dErrors.New(dErrors.CodeValidation, "last_name cannot be blank")
	}
	if (u.FirstName != nil && len(*u.FirstName) > maxNameLength) || (u.LastName != nil && len(*u.LastName) > maxNameLength) {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if u.Age != nil && (*u.Age < 0 || *u.Age > maxAge) {
		return dErrors.New(dErrors.CodeValidation, "age must be between 0 and 150")
	}
	return nil
}

func (u DemographicsUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Gender == nil && u.Age == nil &&
		u.WorkType == nil && u.ResidenceType == nil && u.EverMarried == nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// CreateRequest registers a patient. An empty Role means user.
type CreateRequest struct {
	Email        string
	Role         access.Role
	Demographics Demographics
}

func (r *CreateRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Demographics.FirstName = strings.TrimSpace(r.Demographics.FirstName)
	r.Demographics.LastName = strings.TrimSpace(r.Demographics.LastName)
	if r.Role == "" {
		r.Role = access.RoleUser
	}
}
