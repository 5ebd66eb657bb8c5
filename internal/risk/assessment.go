package risk

// Assessment is the full engine output for one set of factors.
type Assessment struct {
	Score    float64  `json:"risk_score"`
	Category Category `json:"category"`
	Labels   Labels   `json:"labels"`
}

// Assess runs ComputeRisk, Categorize and MapClinicalLabels together.
func Assess(f Factors) Assessment {
	score := ComputeRisk(f)
	return Assessment{
		Score:    score,
		Category: Categorize(score),
		Labels:   MapClinicalLabels(f),
	}
}
