package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"vitalrisk/internal/access"
	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/sentinel"
)

// profileStore is the behaviour every backend must share.
type profileStore interface {
	CreateIfEmailAvailable(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, pid id.PatientID) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	List(ctx context.Context) ([]*models.Profile, error)
	Execute(ctx context.Context, pid id.PatientID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error)
	Delete(ctx context.Context, pid id.PatientID) error
	Stats(ctx context.Context, since time.Time, recentLimit int) (*models.Stats, error)
}

// contractSuite is embedded by each backend's suite. newStore must return an
// empty store.
type contractSuite struct {
	suite.Suite
	newStore func() profileStore
	store    profileStore
	ctx      context.Context
}

func (s *contractSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
}

func ptr[T any](v T) *T { return &v }

func (s *contractSuite) newProfile(email string, age int, createdAt time.Time) *models.Profile {
	p, err := models.NewProfile(id.NewPatientID(), email, access.RoleUser, models.Demographics{FirstName: "Test", Age: ptr(age)}, createdAt.UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return p
}

func (s *contractSuite) TestCreationAndLookups() {
	p := s.newProfile("Lookup@Example.com", 50, time.Now())
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, p))

	s.Run("finds by id", func() {
		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.Email, found.Email)
		s.Equal(access.RoleUser, found.Role)
		s.Equal(0.15, found.RiskScore)
		s.Require().NotNil(found.Demographics.Age)
		s.Equal(50, *found.Demographics.Age)
		s.Nil(found.Clinical.BMI)
	})

	s.Run("finds by email in any case", func() {
		found, err := s.store.FindByEmail(s.ctx, "LOOKUP@example.COM")
		s.Require().NoError(err)
		s.Equal(p.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewPatientID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *contractSuite) TestEmailUniquenessIsCaseInsensitive() {
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, s.newProfile("dup@example.com", 30, time.Now())))

	for _, email := range []string{"dup@example.com", "DUP@EXAMPLE.COM", "Dup@Example.Com"} {
		err := s.store.CreateIfEmailAvailable(s.ctx, s.newProfile(email, 30, time.Now()))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed, "email %q", email)
	}

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *contractSuite) TestConcurrentCreateSameEmail() {
	const goroutines = 20
	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfEmailAvailable(s.ctx, s.newProfile("race@example.com", 40, time.Now()))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *contractSuite) TestExecute() {
	p := s.newProfile("exec@example.com", 65, time.Now())
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, p))

	s.Run("persists fields and score together", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		u := models.ClinicalUpdate{BMI: ptr(35.0), AvgGlucoseLevel: ptr(140.0), Hypertension: ptr(true), HeartDisease: ptr(true), SmokingStatus: ptr(risk.SmokingCurrent)}
		updated, err := s.store.Execute(s.ctx, p.ID,
			func(p *models.Profile) error { return p.CanApplyClinical(u) },
			func(p *models.Profile) { p.ApplyClinical(u, now) },
		)
		s.Require().NoError(err)
		s.Equal(0.95, updated.RiskScore)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(0.95, found.RiskScore)
		s.True(found.ScoreIsCurrent())
		s.Equal(risk.SmokingCurrent, found.Clinical.SmokingStatus)
		s.True(found.UpdatedAt.Equal(now))
	})

	s.Run("validation failure writes nothing", func() {
		_, err := s.store.Execute(s.ctx, p.ID,
			func(*models.Profile) error { return errors.New("rejected") },
			func(p *models.Profile) { p.ApplyClinical(models.ClinicalUpdate{HeartDisease: ptr(false)}, time.Now()) },
		)
		s.Require().Error(err)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(0.95, found.RiskScore)
	})

	s.Run("role is never written", func() {
		_, err := s.store.Execute(s.ctx, p.ID,
			func(*models.Profile) error { return nil },
			func(p *models.Profile) {
				p.Role = access.RoleAdmin
				p.ApplyDemographics(models.DemographicsUpdate{FirstName: ptr("Mallory")}, time.Now())
			},
		)
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("Mallory", found.Demographics.FirstName)
		s.Equal(access.RoleUser, found.Role)
	})

	s.Run("no-op mutate returns the stored profile", func() {
		before, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)

		got, err := s.store.Execute(s.ctx, p.ID,
			func(*models.Profile) error { return nil },
			func(*models.Profile) {},
		)
		s.Require().NoError(err)
		s.Equal(before.RiskScore, got.RiskScore)
		s.Equal(before.Demographics.FirstName, got.Demographics.FirstName)
		s.True(before.UpdatedAt.Equal(got.UpdatedAt))
	})

	s.Run("unknown id", func() {
		_, err := s.store.Execute(s.ctx, id.NewPatientID(),
			func(*models.Profile) error { return nil },
			func(*models.Profile) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentExecuteNeverLeavesStaleScore races clinical writers on one id
// and checks the stored score always matches the stored fields.
func (s *contractSuite) TestConcurrentExecuteNeverLeavesStaleScore() {
	p := s.newProfile("race-update@example.com", 50, time.Now())
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, p))

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := models.ClinicalUpdate{
				BMI:          ptr(20.0 + float64(i)),
				Hypertension: ptr(i%2 == 0),
				HeartDisease: ptr(i%3 == 0),
			}
			_, err := s.store.Execute(s.ctx, p.ID,
				func(p *models.Profile) error { return p.CanApplyClinical(u) },
				func(p *models.Profile) { p.ApplyClinical(u, time.Now()) },
			)
			s.NoError(err)
		}(i)

		wg.Add(1)
		go func() {
			defer wg.Done()
			found, err := s.store.FindByID(s.ctx, p.ID)
			if s.NoError(err) {
				s.True(found.ScoreIsCurrent(), "reader observed stale score")
			}
		}()
	}
	wg.Wait()

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(found.ScoreIsCurrent())
}

func (s *contractSuite) TestDelete() {
	p := s.newProfile("gone@example.com", 30, time.Now())
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, p))

	s.Require().NoError(s.store.Delete(s.ctx, p.ID))
	_, err := s.store.FindByID(s.ctx, p.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, p.ID), sentinel.ErrNotFound)

	s.NoError(s.store.CreateIfEmailAvailable(s.ctx, s.newProfile(strings.ToUpper("gone@example.com"), 30, time.Now())),
		"email is free again after delete")
}

func (s *contractSuite) TestListAndStats() {
	now := time.Now()
	old := s.newProfile("old@example.com", 65, now.Add(-30*24*time.Hour))
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, old))
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, s.newProfile(email, 20, now.Add(time.Duration(i)*time.Minute))))
	}
	_, err := s.store.Execute(s.ctx, old.ID,
		func(*models.Profile) error { return nil },
		func(p *models.Profile) {
			p.ApplyClinical(models.ClinicalUpdate{Hypertension: ptr(true), HeartDisease: ptr(true), BMI: ptr(31.0)}, now)
		},
	)
	s.Require().NoError(err)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Equal("c@example.com", all[0].Email)
	s.Equal("old@example.com", all[3].Email)

	stats, err := s.store.Stats(s.ctx, now.Add(-7*24*time.Hour), 2)
	s.Require().NoError(err)
	s.Equal(4, stats.TotalPatients)
	s.Equal(1, stats.HighRiskCount)
	s.InDelta(0.8/4, stats.AverageRisk, 1e-9)
	s.Require().Len(stats.Recent, 2)
	s.Equal("c@example.com", stats.Recent[0].Email)
	s.Equal("b@example.com", stats.Recent[1].Email)
}

func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
