// Package risk computes the heuristic composite risk score for a patient
// profile. It is pure: no I/O, no clock, no shared state.
package risk

import "math"

// MaxScore is the ceiling applied after summing contributions.
const MaxScore = 1.0

type band struct {
	min          float64
	contribution float64
}

// Bands are ordered highest threshold first; the first match wins so
// contributions never stack within a field.
var (
	ageBands = []band{
		{60, 0.25},
		{45, 0.15},
		{30, 0.08},
	}
	bmiBands = []band{
		{30, 0.15},
		{25, 0.08},
	}
	glucoseBands = []band{
		{126, 0.15},
		{100, 0.08},
	}
)

const (
	hypertensionContribution = 0.2
	heartDiseaseContribution = 0.2
)

// ComputeRisk sums the band contributions for f, clamps to MaxScore and
// rounds to three decimals. Nil fields contribute zero.
func ComputeRisk(f Factors) float64 {
	var score float64
	if f.Age != nil {
		score += banded(float64(*f.Age), ageBands)
	}
	if f.BMI != nil {
		score += banded(*f.BMI, bmiBands)
	}
	if f.AvgGlucoseLevel != nil {
		score += banded(*f.AvgGlucoseLevel, glucoseBands)
	}
	if isTrue(f.Hypertension) {
		score += hypertensionContribution
	}
	if isTrue(f.HeartDisease) {
		score += heartDiseaseContribution
	}
	return round3(math.Min(score, MaxScore))
}

func banded(v float64, bands []band) float64 {
	if math.IsNaN(v) {
		return 0
	}
	for _, b := range bands {
		if v >= b.min {
			return b.contribution
		}
	}
	return 0
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
