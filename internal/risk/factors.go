package risk

import "strings"

// Factors are the profile fields the score depends on. Nil means the field has
// never been recorded and contributes nothing.
type Factors struct {
	Age             *int
	BMI             *float64
	AvgGlucoseLevel *float64
	Hypertension    *bool
	HeartDisease    *bool
	Stroke          *bool
	SmokingStatus   SmokingStatus
}

// SmokingStatus is the closed set of smoking codes. The zero value is unset.
type SmokingStatus string

const (
	SmokingFormer  SmokingStatus = "former"
	SmokingNever   SmokingStatus = "never"
	SmokingCurrent SmokingStatus = "current"
	SmokingUnknown SmokingStatus = "unknown"
)

// smokingAliases accepts the legacy numeric codes and the display labels.
var smokingAliases = map[string]SmokingStatus{
	"former":          SmokingFormer,
	"0":               SmokingFormer,
	"former smoker":   SmokingFormer,
	"formerly smoked": SmokingFormer,
	"never":           SmokingNever,
	"1":               SmokingNever,
	"never smoked":    SmokingNever,
	"current":         SmokingCurrent,
	"2":               SmokingCurrent,
	"current smoker":  SmokingCurrent,
	"smokes":          SmokingCurrent,
	"unknown":         SmokingUnknown,
	"3":               SmokingUnknown,
}

// ParseSmokingStatus resolves a code, legacy numeric code or label.
// ok is false for anything outside the closed set.
func ParseSmokingStatus(s string) (SmokingStatus, bool) {
	status, ok := smokingAliases[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}

// Valid reports whether s is one of the four canonical codes.
func (s SmokingStatus) Valid() bool {
	switch s {
	case SmokingFormer, SmokingNever, SmokingCurrent, SmokingUnknown:
		return true
	}
	return false
}

func (s SmokingStatus) String() string { return string(s) }
