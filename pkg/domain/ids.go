// Package domain holds the typed identifiers shared across modules.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "vitalrisk/pkg/domain-errors"
)

// PatientID identifies a patient profile. It is also the session subject.
type PatientID uuid.UUID

// SnapshotID identifies an entry in the snapshot history.
type SnapshotID uuid.UUID

// FeedbackID identifies an entry in the feedback ledger.
type FeedbackID uuid.UUID

func NewPatientID() PatientID   { return PatientID(uuid.New()) }
func NewSnapshotID() SnapshotID { return SnapshotID(uuid.New()) }
func NewFeedbackID() FeedbackID { return FeedbackID(uuid.New()) }

func (id PatientID) String() string  { return uuid.UUID(id).String() }
func (id SnapshotID) String() string { return uuid.UUID(id).String() }
func (id FeedbackID) String() string { return uuid.UUID(id).String() }

func (id PatientID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SnapshotID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FeedbackID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PatientID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id SnapshotID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id FeedbackID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *PatientID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SnapshotID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *FeedbackID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParsePatientID parses a non-nil UUID at a trust boundary.
func ParsePatientID(s string) (PatientID, error) {
	u, err := parseUUID(s, "patient id")
	return PatientID(u), err
}

// ParseSnapshotID parses a non-nil UUID at a trust boundary.
func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID(s, "snapshot id")
	return SnapshotID(u), err
}

// ParseFeedbackID parses a non-nil UUID at a trust boundary.
func ParseFeedbackID(s string) (FeedbackID, error) {
	u, err := parseUUID(s, "feedback id")
	return FeedbackID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}
