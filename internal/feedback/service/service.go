// Package service records patient feedback against the risk state current at
// submission. The ledger is the only copy of a submission, so a failed append
// is reported to the caller as retryable.
package service

import (
	"context"
	"log/slog"

	"vitalrisk/internal/access"
	"vitalrisk/internal/feedback/metrics"
	"vitalrisk/internal/feedback/models"
	profilemodels "vitalrisk/internal/profile/models"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/requestcontext"
)

type Store interface {
	Append(ctx context.Context, e *models.Entry) error
	ListAll(ctx context.Context) ([]*models.Entry, error)
	ListByPatient(ctx context.Context, pid id.PatientID) ([]*models.Entry, error)
}

// ProfileReader supplies the current score. The session is forwarded so the
// profile read is gated like any other.
type ProfileReader interface {
	Get(ctx context.Context, sess access.Session, pid id.PatientID) (*profilemodels.Profile, error)
}

type Service struct {
	store    Store
	profiles ProfileReader
	gate     *access.Gate
	logger   *slog.Logger
	metrics  *metrics.Metrics
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

func New(store Store, profiles ProfileReader, gate *access.Gate, opts ...Option) *Service {
	s := &Service{
		store:    store,
		profiles: profiles,
		gate:     gate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit appends a rating for pid with the profile's current score and category.
func (s *Service) Submit(ctx context.Context, sess access.Session, pid id.PatientID, rating int, comment string) (*models.Entry, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "submit feedback"); err != nil {
		return nil, err
	}

	p, err := s.profiles.Get(ctx, sess, pid)
	if err != nil {
		return nil, err
	}

	entry, err := models.NewEntry(pid, rating, comment, p.RiskScore, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "feedback append failed",
			"error", err,
			"patient_id", pid,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementAppendFailures()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "feedback could not be recorded, please retry")
	}

	s.logger.InfoContext(ctx, "feedback recorded",
		"patient_id", pid,
		"rating", entry.Rating,
		"category", entry.Category,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementSubmitted(string(entry.Category))
	}
	return entry, nil
}

// ListByPatient returns pid's entries newest first.
func (s *Service) ListByPatient(ctx context.Context, sess access.Session, pid id.PatientID) ([]*models.Entry, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "read feedback"); err != nil {
		return nil, err
	}
	entries, err := s.store.ListByPatient(ctx, pid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load feedback")
	}
	return entries, nil
}

// ListAll returns the whole ledger newest first. Admin only.
func (s *Service) ListAll(ctx context.Context, sess access.Session) ([]*models.Entry, error) {
	if err := s.gate.RequireAdmin(ctx, sess, "read all feedback"); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load feedback")
	}
	return entries, nil
}

// Summary returns the ledger's entry count and average rating. Admin only.
func (s *Service) Summary(ctx context.Context, sess access.Session) (models.Summary, error) {
	entries, err := s.ListAll(ctx, sess)
	if err != nil {
		return models.Summary{}, err
	}
	return models.Summarize(entries), nil
}
