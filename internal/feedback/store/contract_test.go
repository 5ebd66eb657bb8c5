package store

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"vitalrisk/internal/feedback/models"
	id "vitalrisk/pkg/domain"
)

type ledger interface {
	Append(ctx context.Context, e *models.Entry) error
	ListAll(ctx context.Context) ([]*models.Entry, error)
	ListByPatient(ctx context.Context, pid id.PatientID) ([]*models.Entry, error)
}

type contractSuite struct {
	suite.Suite
	store ledger
	ctx   context.Context
	base  time.Time
}

func (s *contractSuite) entry(pid id.PatientID, rating int, offset time.Duration) *models.Entry {
	e, err := models.NewEntry(pid, rating, "comment", 0.5, s.base.Add(offset))
	s.Require().NoError(err)
	return e
}

func (s *contractSuite) TestListsAreNewestFirstAndScoped() {
	alice := id.NewPatientID()
	bob := id.NewPatientID()

	s.Require().NoError(s.store.Append(s.ctx, s.entry(alice, 5, time.Second)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry(bob, 2, 2*time.Second)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry(alice, 3, 3*time.Second)))

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]int{3, 2, 5}, ratings(all))

	mine, err := s.store.ListByPatient(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]int{3, 5}, ratings(mine))

	none, err := s.store.ListByPatient(s.ctx, id.NewPatientID())
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *contractSuite) TestEntryRoundTripsDenormalizedState() {
	pid := id.NewPatientID()
	e := s.entry(pid, 4, 0)
	s.Require().NoError(s.store.Append(s.ctx, e))

	got, err := s.store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(e.ID, got[0].ID)
	s.Equal(e.RiskScore, got[0].RiskScore)
	s.Equal(e.Category, got[0].Category)
	s.Equal(e.Color, got[0].Color)
	s.True(e.SubmittedAt.Equal(got[0].SubmittedAt))
}

func (s *contractSuite) TestConcurrentAppendsAreAllKept() {
	pid := id.NewPatientID()
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(s.store.Append(s.ctx, s.entry(pid, 1+i%5, time.Duration(i)*time.Millisecond)))
		}(i)
	}
	wg.Wait()

	got, err := s.store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)
	s.Len(got, 40)
}

func ratings(es []*models.Entry) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.Rating
	}
	return out
}
