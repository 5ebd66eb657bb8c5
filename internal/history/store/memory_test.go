package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "vitalrisk/pkg/domain"
)

type InMemoryStoreSuite struct {
	contractSuite
}

func TestInMemoryStoreSuite(t *testing.T) {
	newStore := func(now func() time.Time) historyStore {
		if now == nil {
			return NewInMemory()
		}
		return NewInMemory(WithClock(now))
	}
	suite.Run(t, &InMemoryStoreSuite{contractSuite{newStore: newStore}})
}

func (s *InMemoryStoreSuite) TestStoredEntriesAreImmutable() {
	store := NewInMemory()
	snap := s.snapshotFor(id.NewPatientID(), 27)
	s.Require().NoError(store.Append(s.ctx, snap))

	*snap.Clinical.BMI = 99
	snap.RiskScore = 1

	got, err := store.ListByPatient(s.ctx, snap.PatientID)
	s.Require().NoError(err)
	s.Equal(27.0, *got[0].Clinical.BMI)
	s.NotEqual(1.0, got[0].RiskScore)
}
