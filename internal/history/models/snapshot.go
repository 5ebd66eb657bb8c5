package models

import (
	"time"

	profilemodels "vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
)

// Trigger names the operation that produced a snapshot.
type Trigger string

const (
	TriggerClinicalUpdate     Trigger = "clinical_update"
	TriggerDemographicsUpdate Trigger = "demographics_update"
	TriggerAnalysis           Trigger = "analysis"
)

// Snapshot is an immutable point-in-time copy of a profile and its assessment.
// PatientID is a weak reference: snapshots outlive deleted profiles.
type Snapshot struct {
	ID           id.SnapshotID              `json:"id"`
	PatientID    id.PatientID               `json:"patient_id"`
	Trigger      Trigger                    `json:"trigger"`
	Demographics profilemodels.Demographics `json:"demographics"`
	Clinical     profilemodels.Clinical     `json:"clinical"`
	Labels       risk.Labels                `json:"labels"`
	RiskScore    float64                    `json:"risk_score"`
	Category     risk.Tier                  `json:"category"`
	Color        string                     `json:"color"`
	RecordedAt   time.Time                  `json:"recorded_at"`
}

// NewSnapshot copies p and assesses the copy. RecordedAt is left for the
// store to assign.
func NewSnapshot(trigger Trigger, p *profilemodels.Profile) *Snapshot {
	c := p.Clone()
	a := c.Assess()
	return &Snapshot{
		ID:           id.NewSnapshotID(),
		PatientID:    c.ID,
		Trigger:      trigger,
		Demographics: c.Demographics,
		Clinical:     c.Clinical,
		Labels:       a.Labels,
		RiskScore:    a.Score,
		Category:     a.Category.Tier,
		Color:        a.Category.Color,
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	p := (&profilemodels.Profile{Demographics: s.Demographics, Clinical: s.Clinical}).Clone()
	c.Demographics = p.Demographics
	c.Clinical = p.Clinical
	return &c
}
