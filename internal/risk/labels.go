package risk

// NotAvailable is the label for smoking codes outside the closed set.
const NotAvailable = "N/A"

// Labels are the human-readable renderings stored alongside snapshots.
type Labels struct {
	Hypertension string `json:"hypertension"`
	HeartDisease string `json:"heart_disease"`
	Stroke       string `json:"stroke"`
	Smoking      string `json:"smoking_status"`
}

var smokingLabels = map[SmokingStatus]string{
	SmokingFormer:  "Former Smoker",
	SmokingNever:   "Never Smoked",
	SmokingCurrent: "Current Smoker",
	SmokingUnknown: "Unknown",
}

// MapClinicalLabels renders the clinical booleans and the smoking code.
// Unrecognized smoking codes render as NotAvailable.
func MapClinicalLabels(f Factors) Labels {
	return Labels{
		Hypertension: yesNo(f.Hypertension, "Have Hypertension", "No Hypertension"),
		HeartDisease: yesNo(f.HeartDisease, "Have Heart Disease", "No Heart Disease"),
		Stroke:       yesNo(f.Stroke, "Had Stroke", "No Stroke"),
		Smoking:      SmokingLabel(f.SmokingStatus),
	}
}

// SmokingLabel renders a smoking code, accepting legacy aliases.
func SmokingLabel(s SmokingStatus) string {
	if label, ok := smokingLabels[s]; ok {
		return label
	}
	if parsed, ok := ParseSmokingStatus(string(s)); ok {
		return smokingLabels[parsed]
	}
	return NotAvailable
}

func yesNo(b *bool, yes, no string) string {
	if isTrue(b) {
		return yes
	}
	return no
}
