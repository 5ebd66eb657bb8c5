package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
)

const (
	MinRating        = 1
	MaxRating        = 5
	maxCommentLength = 2000
)

// Entry is an immutable rating tagged with the risk state active when it was
// submitted. PatientID is a weak reference: entries outlive deleted profiles.
type Entry struct {
	ID          id.FeedbackID `json:"id"`
	PatientID   id.PatientID  `json:"patient_id"`
	Rating      int           `json:"rating"`
	Comment     string        `json:"comment"`
	RiskScore   float64       `json:"risk_score"`
	Category    risk.Tier     `json:"category"`
	Color       string        `json:"color"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// NewEntry validates the rating and comment and captures the category for score.
func NewEntry(pid id.PatientID, rating int, comment string, score float64, now time.Time) (*Entry, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment must be at most 2000 characters")
	}
	c := risk.Categorize(score)
	return &Entry{
		ID:          id.NewFeedbackID(),
		PatientID:   pid,
		Rating:      rating,
		Comment:     comment,
		RiskScore:   score,
		Category:    c.Tier,
		Color:       c.Color,
		SubmittedAt: now,
	}, nil
}

// Summary aggregates the ledger for the admin dashboard.
type Summary struct {
	Count         int     `json:"total_feedback"`
	AverageRating float64 `json:"average_rating"`
}

// Summarize computes a Summary over entries.
func Summarize(entries []*Entry) Summary {
	s := Summary{Count: len(entries)}
	if s.Count == 0 {
		return s
	}
	total := 0
	for _, e := range entries {
		total += e.Rating
	}
	s.AverageRating = float64(total) / float64(s.Count)
	return s
}
