package risk

// Tier is the severity bucket for a score.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

const (
	HighThreshold   = 0.7
	MediumThreshold = 0.4
)

// Category pairs a tier with its display color.
type Category struct {
	Tier  Tier   `json:"category"`
	Color string `json:"color"`
}

var (
	categoryHigh   = Category{Tier: TierHigh, Color: "#dc3545"}
	categoryMedium = Category{Tier: TierMedium, Color: "#ffc107"}
	categoryLow    = Category{Tier: TierLow, Color: "#28a745"}
)

// Categorize buckets a score. Both thresholds are inclusive.
func Categorize(score float64) Category {
	switch {
	case score >= HighThreshold:
		return categoryHigh
	case score >= MediumThreshold:
		return categoryMedium
	default:
		return categoryLow
	}
}

// IsHigh reports whether score falls in the High tier.
func IsHigh(score float64) bool {
	return score >= HighThreshold
}
