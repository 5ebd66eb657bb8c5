package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vitalrisk/internal/access"
	"vitalrisk/internal/history/metrics"
	"vitalrisk/internal/history/models"
	"vitalrisk/internal/history/store"
	profilemodels "vitalrisk/internal/profile/models"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/platform/circuit"
)

// flakyStore fails Append while failing is set.
type flakyStore struct {
	*store.InMemory
	mu      sync.Mutex
	failing bool
	calls   int
}

func (f *flakyStore) Append(ctx context.Context, snap *models.Snapshot) error {
	f.mu.Lock()
	f.calls++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.InMemory.Append(ctx, snap)
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

// blockingStore waits for its context before returning.
type blockingStore struct {
	*store.InMemory
}

func (b *blockingStore) Append(ctx context.Context, _ *models.Snapshot) error {
	<-ctx.Done()
	return ctx.Err()
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *flakyStore
	metrics *metrics.Metrics
	now     time.Time
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &flakyStore{InMemory: store.NewInMemory()}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("history",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	s.service = New(s.store, access.NewGate(),
		WithMetrics(s.metrics),
		WithBreaker(breaker),
	)
}

func ptr[T any](v T) *T { return &v }

func (s *ServiceSuite) newProfile() *profilemodels.Profile {
	pid := id.NewPatientID()
	p, err := profilemodels.NewProfile(pid, pid.String()+"@example.com", access.RoleUser,
		profilemodels.Demographics{FirstName: "Ada", Age: ptr(70)}, s.now)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) TestRecordAppendsAssessedSnapshot() {
	p := s.newProfile()
	p.ApplyClinical(profilemodels.ClinicalUpdate{Hypertension: ptr(true)}, s.now)

	s.service.Record(s.ctx, models.TriggerClinicalUpdate, p)

	snaps, err := s.store.ListByPatient(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(snaps, 1)
	s.Equal(models.TriggerClinicalUpdate, snaps[0].Trigger)
	s.Equal(p.RiskScore, snaps[0].RiskScore)
	s.Equal("Have Hypertension", snaps[0].Labels.Hypertension)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Appended.WithLabelValues("clinical_update")))
}

func (s *ServiceSuite) TestRecordAbsorbsStoreFailure() {
	s.store.setFailing(true)
	p := s.newProfile()

	s.NotPanics(func() {
		s.service.Record(s.ctx, models.TriggerAnalysis, p)
	})

	snaps, err := s.store.ListByPatient(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(snaps)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.AppendFailures))
}

func (s *ServiceSuite) TestBreakerOpensThenRecovers() {
	s.store.setFailing(true)
	p := s.newProfile()

	s.service.Record(s.ctx, models.TriggerAnalysis, p)
	s.service.Record(s.ctx, models.TriggerAnalysis, p)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitBreakerState))

	s.service.Record(s.ctx, models.TriggerAnalysis, p)
	s.Equal(2, s.store.calls, "open breaker skips the store")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitBreakerDropped))

	s.store.setFailing(false)
	s.now = s.now.Add(2 * time.Minute)
	s.service.Record(s.ctx, models.TriggerAnalysis, p)

	s.Equal(float64(0), testutil.ToFloat64(s.metrics.CircuitBreakerState))
	snaps, err := s.store.ListByPatient(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(snaps, 1)
}

func (s *ServiceSuite) TestNothingDroppedAfterStoreRecovers() {
	breaker := circuit.New("history",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(30*time.Second),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	svc := New(s.store, access.NewGate(), WithMetrics(s.metrics), WithBreaker(breaker))
	p := s.newProfile()

	s.store.setFailing(true)
	svc.Record(s.ctx, models.TriggerAnalysis, p)
	s.Require().True(breaker.IsOpen())

	s.store.setFailing(false)
	s.now = s.now.Add(31 * time.Second)
	for range 6 {
		svc.Record(s.ctx, models.TriggerClinicalUpdate, p)
	}

	snaps, err := s.store.ListByPatient(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(snaps, 6)
	s.Equal(circuit.StateClosed, breaker.State())
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.CircuitBreakerDropped))
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.CircuitBreakerState))
}

func (s *ServiceSuite) TestRecordSurvivesCancelledRequest() {
	p := s.newProfile()
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	s.service.Record(ctx, models.TriggerDemographicsUpdate, p)

	snaps, err := s.store.ListByPatient(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(snaps, 1)
}

func (s *ServiceSuite) TestListByPatientRequiresSelfOrAdmin() {
	p := s.newProfile()
	s.service.Record(s.ctx, models.TriggerAnalysis, p)

	self := access.Session{Role: access.RoleUser, SubjectID: p.ID}
	snaps, err := s.service.ListByPatient(s.ctx, self, p.ID)
	s.Require().NoError(err)
	s.Len(snaps, 1)

	admin := access.Session{Role: access.RoleAdmin, SubjectID: id.NewPatientID()}
	snaps, err = s.service.ListByPatient(s.ctx, admin, p.ID)
	s.Require().NoError(err)
	s.Len(snaps, 1)

	other := access.Session{Role: access.RoleUser, SubjectID: id.NewPatientID()}
	_, err = s.service.ListByPatient(s.ctx, other, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.ListByPatient(s.ctx, access.Session{}, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestListAllIsAdminOnly() {
	s.service.Record(s.ctx, models.TriggerAnalysis, s.newProfile())
	s.service.Record(s.ctx, models.TriggerAnalysis, s.newProfile())

	user := access.Session{Role: access.RoleUser, SubjectID: id.NewPatientID()}
	_, err := s.service.ListAll(s.ctx, user)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	snaps, err := s.service.ListAll(s.ctx, access.Session{Role: access.RoleAdmin, SubjectID: id.NewPatientID()})
	s.Require().NoError(err)
	s.Len(snaps, 2)
}

func TestRecord_TimesOutSlowStore(t *testing.T) {
	svc := New(&blockingStore{InMemory: store.NewInMemory()}, access.NewGate(),
		WithAppendTimeout(20*time.Millisecond))

	pid := id.NewPatientID()
	p, err := profilemodels.NewProfile(pid, "slow@example.com", access.RoleUser, profilemodels.Demographics{}, time.Now())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Record(context.Background(), models.TriggerAnalysis, p)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "Record did not return after the append timeout")
	}
}
