// Package admin serves the administrator views over profiles, history and
// feedback.
package admin

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"vitalrisk/internal/access"
	feedbackmodels "vitalrisk/internal/feedback/models"
	profilemodels "vitalrisk/internal/profile/models"
	"vitalrisk/pkg/requestcontext"
)

const (
	recentWindow  = 7 * 24 * time.Hour
	recentLimit   = 5
	gatherTimeout = 5 * time.Second
)

type ProfileStats interface {
	Stats(ctx context.Context, sess access.Session, since time.Time, recentLimit int) (*profilemodels.Stats, error)
}

type FeedbackSummary interface {
	Summary(ctx context.Context, sess access.Session) (feedbackmodels.Summary, error)
}

// Dashboard is the admin overview.
type Dashboard struct {
	Patients    *profilemodels.Stats
	Feedback    feedbackmodels.Summary
	GeneratedAt time.Time
}

type Service struct {
	profiles ProfileStats
	feedback FeedbackSummary
	gate     *access.Gate
	logger   *slog.Logger
}

func NewService(profiles ProfileStats, feedback FeedbackSummary, gate *access.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{profiles: profiles, feedback: feedback, gate: gate, logger: logger}
}

// Dashboard gathers patient statistics and the feedback summary in parallel.
// The first failure cancels the other fetch.
func (s *Service) Dashboard(ctx context.Context, sess access.Session) (*Dashboard, error) {
	if err := s.gate.RequireAdmin(ctx, sess, "view dashboard"); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	d := &Dashboard{GeneratedAt: now}
	g.Go(func() error {
		stats, err := s.profiles.Stats(ctx, sess, now.Add(-recentWindow), recentLimit)
		if err != nil {
			return err
		}
		d.Patients = stats
		return nil
	})
	g.Go(func() error {
		summary, err := s.feedback.Summary(ctx, sess)
		if err != nil {
			return err
		}
		d.Feedback = summary
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard gathering failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}
	return d, nil
}
