package store

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"vitalrisk/internal/access"
	"vitalrisk/internal/history/models"
	profilemodels "vitalrisk/internal/profile/models"
	id "vitalrisk/pkg/domain"
)

type historyStore interface {
	Append(ctx context.Context, snap *models.Snapshot) error
	ListByPatient(ctx context.Context, pid id.PatientID) ([]*models.Snapshot, error)
	ListAll(ctx context.Context) ([]*models.Snapshot, error)
}

type contractSuite struct {
	suite.Suite
	newStore func(now func() time.Time) historyStore
	ctx      context.Context
}

func (s *contractSuite) SetupTest() {
	s.ctx = context.Background()
}

func ptr[T any](v T) *T { return &v }

func (s *contractSuite) snapshotFor(pid id.PatientID, bmi float64) *models.Snapshot {
	p, err := profilemodels.NewProfile(pid, pid.String()+"@example.com", access.RoleUser, profilemodels.Demographics{Age: ptr(61)}, time.Now())
	s.Require().NoError(err)
	p.ApplyClinical(profilemodels.ClinicalUpdate{BMI: ptr(bmi), Hypertension: ptr(true)}, time.Now())
	return models.NewSnapshot(models.TriggerClinicalUpdate, p)
}

// TestAppendThenQueryReturnsNewestFirst appends N snapshots and expects exactly
// N back in strictly descending time order.
func (s *contractSuite) TestAppendThenQueryReturnsNewestFirst() {
	store := s.newStore(nil)
	pid := id.NewPatientID()
	other := id.NewPatientID()

	const n = 25
	for i := 0; i < n; i++ {
		s.Require().NoError(store.Append(s.ctx, s.snapshotFor(pid, 20+float64(i))))
	}
	s.Require().NoError(store.Append(s.ctx, s.snapshotFor(other, 40)))

	got, err := store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)
	s.Require().Len(got, n)
	for i := 1; i < len(got); i++ {
		s.True(got[i-1].RecordedAt.After(got[i].RecordedAt), "entry %d not strictly newer than %d", i-1, i)
	}
	s.Equal(20+float64(n-1), *got[0].Clinical.BMI, "newest first")
	for _, snap := range got {
		s.Equal(pid, snap.PatientID)
	}

	all, err := store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, n+1)
	s.Equal(other, all[0].PatientID)
}

func (s *contractSuite) TestTimestampsStrictWhenClockStalls() {
	frozen := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := s.newStore(func() time.Time { return frozen })
	pid := id.NewPatientID()

	for i := 0; i < 3; i++ {
		s.Require().NoError(store.Append(s.ctx, s.snapshotFor(pid, 25)))
	}
	got, err := store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.True(got[0].RecordedAt.After(got[1].RecordedAt))
	s.True(got[1].RecordedAt.After(got[2].RecordedAt))
	s.True(frozen.Equal(got[2].RecordedAt))
}

func (s *contractSuite) TestSnapshotCarriesAssessment() {
	store := s.newStore(nil)
	pid := id.NewPatientID()
	s.Require().NoError(store.Append(s.ctx, s.snapshotFor(pid, 31)))

	got, err := store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	snap := got[0]
	s.False(snap.ID.IsNil())
	s.Equal(models.TriggerClinicalUpdate, snap.Trigger)
	s.Equal(0.6, snap.RiskScore)
	s.Equal("Medium", string(snap.Category))
	s.Equal("#ffc107", snap.Color)
	s.Equal("Have Hypertension", snap.Labels.Hypertension)
	s.Equal("No Stroke", snap.Labels.Stroke)
	s.Require().NotNil(snap.Demographics.Age)
	s.Equal(61, *snap.Demographics.Age)
}

func (s *contractSuite) TestQueryIsRestartable() {
	store := s.newStore(nil)
	pid := id.NewPatientID()
	s.Require().NoError(store.Append(s.ctx, s.snapshotFor(pid, 22)))

	first, err := store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)

	s.Require().NoError(store.Append(s.ctx, s.snapshotFor(pid, 23)))
	second, err := store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)

	s.Require().Len(second, len(first)+1)
	s.Equal(first[0].ID, second[1].ID)
}

func (s *contractSuite) TestConcurrentAppends() {
	store := s.newStore(nil)
	pid := id.NewPatientID()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(store.Append(s.ctx, s.snapshotFor(pid, float64(20+i))))
		}(i)
	}
	wg.Wait()

	got, err := store.ListByPatient(s.ctx, pid)
	s.Require().NoError(err)
	s.Len(got, writers)
	seen := make(map[id.SnapshotID]bool)
	for _, snap := range got {
		s.False(seen[snap.ID], "duplicate snapshot")
		seen[snap.ID] = true
	}
}
