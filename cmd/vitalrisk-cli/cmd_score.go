package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vitalrisk/internal/risk"
)

type scoreFlags struct {
	age          int
	bmi          float64
	glucose      float64
	hypertension bool
	heartDisease bool
	stroke       bool
	smoking      string
	asJSON       bool
}

func newScoreCmd() *cobra.Command {
	var f scoreFlags
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute a risk assessment from factors given as flags",
		Long: "Compute the risk score, tier and clinical labels for one factor set.\n" +
			"Omitted flags are treated as never recorded.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factors, err := f.factors(cmd)
			if err != nil {
				return err
			}
			a := risk.Assess(factors)
			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			fmt.Fprintf(out, "Risk score:    %.3f\n", a.Score)
			fmt.Fprintf(out, "Category:      %s (%s)\n", a.Category.Tier, a.Category.Color)
			fmt.Fprintf(out, "Hypertension:  %s\n", a.Labels.Hypertension)
			fmt.Fprintf(out, "Heart disease: %s\n", a.Labels.HeartDisease)
			fmt.Fprintf(out, "Stroke:        %s\n", a.Labels.Stroke)
			fmt.Fprintf(out, "Smoking:       %s\n", a.Labels.Smoking)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.age, "age", 0, "age in years")
	fl.Float64Var(&f.bmi, "bmi", 0, "body mass index")
	fl.Float64Var(&f.glucose, "glucose", 0, "average glucose level (mg/dL)")
	fl.BoolVar(&f.hypertension, "hypertension", false, "has hypertension")
	fl.BoolVar(&f.heartDisease, "heart-disease", false, "has heart disease")
	fl.BoolVar(&f.stroke, "stroke", false, "has had a stroke")
	fl.StringVar(&f.smoking, "smoking", "", "smoking status: former, never, current, unknown (or 0-3)")
	fl.BoolVar(&f.asJSON, "json", false, "print the assessment as JSON")
	return cmd
}

// factors sets only the flags the user passed, so absent flags stay unset.
func (f *scoreFlags) factors(cmd *cobra.Command) (risk.Factors, error) {
	var out risk.Factors
	changed := cmd.Flags().Changed
	if changed("age") {
		if f.age < 0 || f.age > 150 {
			return out, fmt.Errorf("age must be between 0 and 150")
		}
		out.Age = &f.age
	}
	if changed("bmi") {
		out.BMI = &f.bmi
	}
	if changed("glucose") {
		out.AvgGlucoseLevel = &f.glucose
	}
	if changed("hypertension") {
		out.Hypertension = &f.hypertension
	}
	if changed("heart-disease") {
		out.HeartDisease = &f.heartDisease
	}
	if changed("stroke") {
		out.Stroke = &f.stroke
	}
	if changed("smoking") {
		s, ok := risk.ParseSmokingStatus(f.smoking)
		if !ok {
			return out, fmt.Errorf("unknown smoking status %q", f.smoking)
		}
		out.SmokingStatus = s
	}
	return out, nil
}
