package service

import (
	"context"
	"errors"

	"vitalrisk/internal/access"
	"vitalrisk/internal/profile/models"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/platform/sentinel"
	"vitalrisk/pkg/requestcontext"
)

// SeedAdmin makes sure an admin profile exists for email. Admin profiles can
// otherwise only be created from an admin session, so this is how the first
// one appears. It is idempotent; created reports whether a profile was added.
// An existing non-admin profile under the same email is a conflict.
func (s *Service) SeedAdmin(ctx context.Context, email string) (p *models.Profile, created bool, err error) {
	existing, err := s.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != access.RoleAdmin {
			return nil, false, dErrors.New(dErrors.CodeConflict, "email belongs to a non-admin profile")
		}
		return existing, false, nil
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		return nil, false, err
	}

	p, err = models.NewProfile(id.NewPatientID(), email, access.RoleAdmin,
		models.Demographics{FirstName: "System", LastName: "Administrator"},
		requestcontext.Now(ctx))
	if err != nil {
		return nil, false, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.CreateIfEmailAvailable(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// lost a race with a concurrent seed
			return s.SeedAdmin(ctx, email)
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed admin")
	}

	s.logger.InfoContext(ctx, "bootstrap admin seeded", "patient_id", p.ID)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return p, true, nil
}
