// Package service records and serves the snapshot history.
//
// The history is a derived audit trail. Record never fails its caller: an
// append that errors or times out is logged, counted and dropped, and a
// circuit breaker stops hammering a store that keeps failing.
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
	"vitalrisk/internal/history/metrics"
	"vitalrisk/internal/history/models"
	profilemodels "vitalrisk/internal/profile/models"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/platform/circuit"
	"vitalrisk/pkg/requestcontext"
)

// ErrWriteFailed marks a dropped snapshot append. It is logged, never returned
// to the operation that triggered the snapshot.
var ErrWriteFailed = errors.New("history write failed")

const defaultAppendTimeout = 2 * time.Second

type Store interface {
	Append(ctx context.Context, snap *models.Snapshot) error
	ListByPatient(ctx context.Context, pid id.PatientID) ([]*models.Snapshot, error)
	ListAll(ctx context.Context) ([]*models.Snapshot, error)
}

type Service struct {
	store         Store
	gate          *access.Gate
	breaker       *circuit.Breaker
	appendTimeout time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
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

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// WithAppendTimeout bounds each append independently of the request context.
func WithAppendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.appendTimeout = d
		}
	}
}

func New(store Store, gate *access.Gate, opts ...Option) *Service {
	s := &Service{
		store:         store,
		gate:          gate,
		appendTimeout: defaultAppendTimeout,
		logger:        slog.Default(),
		tracer:        otel.Tracer("vitalrisk/history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("history")
	}
	return s
}

// Record appends a snapshot of p. It always returns; failures are absorbed.
// The append runs detached from ctx cancellation so an aborted request does
// not lose the snapshot of a write that already committed.
func (s *Service) Record(ctx context.Context, trigger models.Trigger, p *profilemodels.Profile) {
	ctx, span := s.tracer.Start(ctx, "history.Record",
		trace.WithAttributes(
			attribute.String("patient_id", p.ID.String()),
			attribute.String("trigger", string(trigger)),
		))
	defer span.End()

	if !s.breaker.Allow() {
		s.incDropped()
		span.SetAttributes(attribute.Bool("dropped", true))
		s.logger.WarnContext(ctx, "snapshot dropped: history circuit open",
			"patient_id", p.ID,
			"trigger", trigger,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}

	snap := models.NewSnapshot(trigger, p)
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.appendTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Append(appendCtx, snap)
	s.observeAppend(start)
	if err != nil {
		_, change := s.breaker.RecordFailure()
		s.onBreakerChange(ctx, change)
		s.incAppendFailures()
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot append failed")
		s.logger.ErrorContext(ctx, "snapshot append failed",
			"error", errors.Join(ErrWriteFailed, err),
			"patient_id", p.ID,
			"trigger", trigger,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}

	_, change := s.breaker.RecordSuccess()
	s.onBreakerChange(ctx, change)
	s.incAppended(trigger)
}

// ListByPatient returns pid's snapshots newest first.
func (s *Service) ListByPatient(ctx context.Context, sess access.Session, pid id.PatientID) ([]*models.Snapshot, error) {
	if err := s.gate.RequireSelfOrAdmin(ctx, sess, pid, "read snapshot history"); err != nil {
		return nil, err
	}
	snaps, err := s.store.ListByPatient(ctx, pid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot history")
	}
	return snaps, nil
}

// ListAll returns every snapshot newest first. Admin only.
func (s *Service) ListAll(ctx context.Context, sess access.Session) ([]*models.Snapshot, error) {
	if err := s.gate.RequireAdmin(ctx, sess, "read all snapshot history"); err != nil {
		return nil, err
	}
	snaps, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot history")
	}
	return snaps, nil
}

func (s *Service) onBreakerChange(ctx context.Context, change circuit.Change) {
	switch {
	case change.Opened:
		s.logger.WarnContext(ctx, "history circuit opened", "breaker", s.breaker.Name())
		s.setCircuitOpen(true)
	case change.Closed:
		s.logger.InfoContext(ctx, "history circuit closed", "breaker", s.breaker.Name())
		s.setCircuitOpen(false)
	}
}

func (s *Service) incAppended(trigger models.Trigger) {
	if s.metrics != nil {
		s.metrics.IncAppended(string(trigger))
	}
}

func (s *Service) incAppendFailures() {
	if s.metrics != nil {
		s.metrics.IncAppendFailures()
	}
}

func (s *Service) incDropped() {
	if s.metrics != nil {
		s.metrics.IncCircuitBreakerDropped()
	}
}

func (s *Service) setCircuitOpen(open bool) {
	if s.metrics != nil {
		s.metrics.SetCircuitOpen(open)
	}
}

func (s *Service) observeAppend(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAppend(start)
	}
}
