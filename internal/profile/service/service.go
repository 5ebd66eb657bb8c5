// Package service orchestrates patient profile operations.
//
// Every operation consults the access gate before touching the store. Writes
// that change scored fields run validate, mutate and rescore inside one store
// Execute unit and then hand the committed profile to the snapshot recorder,
// whose failures never reach the caller.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vitalrisk/internal/access"
	historymodels "vitalrisk/internal/history/models"
	"vitalrisk/internal/profile/metrics"
	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/platform/sentinel"
	"vitalrisk/pkg/requestcontext"
)

type Store interface {
	CreateIfEmailAvailable(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, pid id.PatientID) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	List(ctx context.Context) ([]*models.Profile, error)
	Execute(ctx context.Context, pid id.PatientID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error)
	Delete(ctx context.Context, pid id.PatientID) error
	Stats(ctx context.Context, since time.Time, recentLimit int) (*models.Stats, error)
}

// SnapshotRecorder appends best-effort history entries. Record must not block
// the caller on store failures.
type SnapshotRecorder interface {
	Record(ctx context.Context, trigger historymodels.Trigger, p *models.Profile)
}

// Analysis is the result of an explicit risk evaluation.
type Analysis struct {
	Profile    *models.Profile
	Assessment risk.Assessment
}

type Service struct {
	store    Store
	gate     *access.Gate
	recorder SnapshotRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSnapshotRecorder(r SnapshotRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func New(store Store, gate *access.Gate, opts ...Option) *Service {
	s := &Service{
		store:  store,
		gate:   gate,
		logger: slog.Default(),
		tracer: otel.Tracer("vitalrisk/profile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a patient. Self-registration as user needs no session;
// creating an admin profile needs an admin session.
func (s *Service) Create(ctx context.Context, sess access.Session, req models.CreateRequest) (*models.Profile, error) {
	req.Normalize()
	if !req.Role.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be user or admin")
	}
	if req.Role == access.RoleAdmin {
		if err := s.gate.RequireAdmin(ctx, sess, "create admin profile"); err != nil {
			return nil, err
		}
	}

	p, err := models.NewProfile(id.NewPatientID(), req.Email, req.Role, req.Demographics, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.CreateIfEmailAvailable(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}

	s.logger.InfoContext(ctx, "profile created",
		"patient_id", p.ID,
		"role", p.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
		s.metrics.ObserveScore(p.RiskScore)
	}
	return p, nil
}

// Get returns the stored profile.
func (s *Service) Get(ctx context.Context, sess access.Session, pid id.PatientID) (*models.Profile, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "read profile"); err != nil {
		return nil, err
	}
	return s.find(ctx, pid)
}

// FindByEmail is an unauthenticated lookup for bootstrap tooling.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	p, err := s.store.FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, translateLookup(err)
	}
	return p, nil
}

// UpdateClinical writes clinical fields and the recomputed score atomically.
func (s *Service) UpdateClinical(ctx context.Context, sess access.Session, pid id.PatientID, u models.ClinicalUpdate) (*models.Profile, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "update clinical data"); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "profile.UpdateClinical",
		trace.WithAttributes(attribute.String("patient_id", pid.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	p, err := s.store.Execute(ctx, pid,
		func(p *models.Profile) error { return p.CanApplyClinical(u) },
		func(p *models.Profile) { p.ApplyClinical(u, now) },
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clinical update failed")
		return nil, translateWrite(err, "failed to update clinical data")
	}
	span.SetAttributes(attribute.Float64("risk_score", p.RiskScore))

	s.afterWrite(ctx, historymodels.TriggerClinicalUpdate, "clinical", p)
	return p, nil
}

// UpdateDemographics writes demographic fields. Age is scored, so the score
// is recomputed in the same unit.
func (s *Service) UpdateDemographics(ctx context.Context, sess access.Session, pid id.PatientID, u models.DemographicsUpdate) (*models.Profile, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "update demographics"); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "profile.UpdateDemographics",
		trace.WithAttributes(attribute.String("patient_id", pid.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	p, err := s.store.Execute(ctx, pid,
		func(p *models.Profile) error { return p.CanApplyDemographics(u) },
		func(p *models.Profile) { p.ApplyDemographics(u, now) },
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "demographics update failed")
		return nil, translateWrite(err, "failed to update demographics")
	}

	s.afterWrite(ctx, historymodels.TriggerDemographicsUpdate, "demographics", p)
	return p, nil
}

// Analyze evaluates the stored profile and records an analysis snapshot. A
// stored score that disagrees with the engine is repaired under the same lock.
func (s *Service) Analyze(ctx context.Context, sess access.Session, pid id.PatientID) (*Analysis, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "analyze risk"); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "profile.Analyze",
		trace.WithAttributes(attribute.String("patient_id", pid.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	drifted := false
	p, err := s.store.Execute(ctx, pid,
		func(*models.Profile) error { return nil },
		func(p *models.Profile) {
			if !p.ScoreIsCurrent() {
				drifted = true
				p.Rescore()
				p.UpdatedAt = now
			}
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, translateWrite(err, "failed to analyze risk")
	}

	if drifted {
		s.logger.WarnContext(ctx, "stored risk score was stale and has been repaired",
			"patient_id", pid,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementScoreDrift()
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementAnalyses()
	}
	s.record(ctx, historymodels.TriggerAnalysis, p)

	assessment := p.Assess()
	span.SetAttributes(
		attribute.Float64("risk_score", assessment.Score),
		attribute.String("category", string(assessment.Category.Tier)),
	)
	return &Analysis{Profile: p, Assessment: assessment}, nil
}

// Delete hard-deletes a profile. History and feedback entries are kept.
func (s *Service) Delete(ctx context.Context, sess access.Session, pid id.PatientID) error {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "delete profile"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, pid); err != nil {
		return translateWrite(err, "failed to delete profile")
	}
	s.logger.InfoContext(ctx, "profile deleted",
		"patient_id", pid,
		"deleted_by", sess.SubjectID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

// List returns every profile, newest first. Admin only.
func (s *Service) List(ctx context.Context, sess access.Session) ([]*models.Profile, error) {
	if err := s.gate.RequireAdmin(ctx, sess, "list profiles"); err != nil {
		return nil, err
	}
	ps, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	return ps, nil
}

// Stats returns dashboard aggregates with at most recentLimit profiles
// created at or after since. Admin only.
func (s *Service) Stats(ctx context.Context, sess access.Session, since time.Time, recentLimit int) (*models.Stats, error) {
	if err := s.gate.RequireAdmin(ctx, sess, "read patient statistics"); err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx, since, recentLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute patient statistics")
	}
	return stats, nil
}

func (s *Service) find(ctx context.Context, pid id.PatientID) (*models.Profile, error) {
	p, err := s.store.FindByID(ctx, pid)
	if err != nil {
		return nil, translateLookup(err)
	}
	return p, nil
}

func (s *Service) afterWrite(ctx context.Context, trigger historymodels.Trigger, kind string, p *models.Profile) {
	s.logger.InfoContext(ctx, "profile updated",
		"patient_id", p.ID,
		"kind", kind,
		"risk_score", p.RiskScore,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementUpdated(kind)
		s.metrics.ObserveScore(p.RiskScore)
	}
	s.record(ctx, trigger, p)
}

func (s *Service) record(ctx context.Context, trigger historymodels.Trigger, p *models.Profile) {
	if s.recorder != nil {
		s.recorder.Record(ctx, trigger, p)
	}
}

func translateLookup(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
}

// translateWrite maps Execute and Delete errors. Domain errors raised by the
// validate callback pass through unchanged.
func translateWrite(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
