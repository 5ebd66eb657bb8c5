package store

import (
	"context"
	"sync"
	"time"

	"vitalrisk/internal/history/models"
	id "vitalrisk/pkg/domain"
)

// InMemory keeps snapshots in append order.
type InMemory struct {
	mu        sync.RWMutex
	clock     *monotonicClock
	snapshots []*models.Snapshot
	byPatient map[id.PatientID][]int
}

type Option func(*monotonicClock)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *monotonicClock) {
		c.now = now
	}
}

func NewInMemory(opts ...Option) *InMemory {
	clock := newMonotonicClock(nil)
	for _, opt := range opts {
		opt(clock)
	}
	return &InMemory{
		clock:     clock,
		byPatient: make(map[id.PatientID][]int),
	}
}

// Append assigns RecordedAt (and an ID when unset) and stores a copy.
func (s *InMemory) Append(ctx context.Context, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID.IsNil() {
		snap.ID = id.NewSnapshotID()
	}
	snap.RecordedAt = s.clock.Next()
	s.snapshots = append(s.snapshots, snap.Clone())
	s.byPatient[snap.PatientID] = append(s.byPatient[snap.PatientID], len(s.snapshots)-1)
	return nil
}

// ListByPatient returns pid's snapshots, newest first.
func (s *InMemory) ListByPatient(_ context.Context, pid id.PatientID) ([]*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byPatient[pid]
	out := make([]*models.Snapshot, 0, len(idx))
	for i := len(idx) - 1; i >= 0; i-- {
		out = append(out, s.snapshots[idx[i]].Clone())
	}
	return out, nil
}

// ListAll returns every snapshot, newest first.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Snapshot, 0, len(s.snapshots))
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		out = append(out, s.snapshots[i].Clone())
	}
	return out, nil
}
