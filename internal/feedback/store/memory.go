// Package store persists the append-only feedback ledger.
package store

import (
	"context"
	"sort"
	"sync"

	"vitalrisk/internal/feedback/models"
	id "vitalrisk/pkg/domain"
)

// InMemory appends entries to a slice. Entries are never modified or removed.
type InMemory struct {
	mu      sync.RWMutex
	entries []*models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, e *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := *e
	s.mu.Lock()
	s.entries = append(s.entries, &c)
	s.mu.Unlock()
	return nil
}

// ListAll returns every entry, newest first.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Entry, error) {
	return s.collect(func(*models.Entry) bool { return true }), nil
}

// ListByPatient returns pid's entries, newest first.
func (s *InMemory) ListByPatient(_ context.Context, pid id.PatientID) ([]*models.Entry, error) {
	return s.collect(func(e *models.Entry) bool { return e.PatientID == pid }), nil
}

func (s *InMemory) collect(keep func(*models.Entry) bool) []*models.Entry {
	s.mu.RLock()
	out := make([]*models.Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if keep(s.entries[i]) {
			c := *s.entries[i]
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}
