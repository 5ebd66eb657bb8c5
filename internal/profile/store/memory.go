// Package store persists patient profiles. Stores are pure I/O; scoring and
// validation live in the models and service packages.
package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"reflect"
	"sort"
	"sync"
	"time"

	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/sentinel"
)

// numShards bounds the per-patient lock table for Execute.
const numShards = 64

// InMemory keeps profiles in maps. Execute serializes writers per patient id
// through a sharded lock table so different patients proceed in parallel.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.PatientID]*models.Profile
	byEmail  map[string]id.PatientID

	shards [numShards]sync.Mutex
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[id.PatientID]*models.Profile),
		byEmail:  make(map[string]id.PatientID),
	}
}

// CreateIfEmailAvailable inserts p unless its email is already taken.
func (s *InMemory) CreateIfEmailAvailable(_ context.Context, p *models.Profile) error {
	email := models.NormalizeEmail(p.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return fmt.Errorf("email %s: %w", email, sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.profiles[p.ID]; exists {
		return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrConflict)
	}
	stored := p.Clone()
	stored.Email = email
	s.profiles[p.ID] = stored
	s.byEmail[email] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, pid id.PatientID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[pid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.profiles[pid].Clone(), nil
}

// List returns all profiles, newest first.
func (s *InMemory) List(_ context.Context) ([]*models.Profile, error) {
	s.mu.RLock()
	out := make([]*models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

// Execute loads the profile, runs validate and mutate on a private copy and
// stores the result. Identity columns (id, email, role, created_at) are kept
// from the stored record. The patient's shard lock is held throughout, so no other
// Execute or Delete on the same id interleaves. Readers see either the old or
// the new record, never a mix.
func (s *InMemory) Execute(ctx context.Context, pid id.PatientID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	lock := s.lockFor(pid)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	current, ok := s.profiles[pid]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	keepIdentity(working, current)
	if unchanged(current, working) {
		return working, nil
	}

	s.mu.Lock()
	s.profiles[pid] = working
	s.mu.Unlock()
	return working.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, pid id.PatientID) error {
	lock := s.lockFor(pid)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[pid]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, p.Email)
	delete(s.profiles, pid)
	return nil
}

// Stats aggregates the dashboard figures. recentLimit caps profiles created
// at or after since.
func (s *InMemory) Stats(_ context.Context, since time.Time, recentLimit int) (*models.Stats, error) {
	s.mu.RLock()
	stats := &models.Stats{TotalPatients: len(s.profiles)}
	var sum float64
	var recent []*models.Profile
	for _, p := range s.profiles {
		sum += p.RiskScore
		if risk.IsHigh(p.RiskScore) {
			stats.HighRiskCount++
		}
		if !p.CreatedAt.Before(since) {
			recent = append(recent, p.Clone())
		}
	}
	s.mu.RUnlock()

	if stats.TotalPatients > 0 {
		stats.AverageRisk = sum / float64(stats.TotalPatients)
	}
	sortNewestFirst(recent)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	stats.Recent = recent
	return stats, nil
}

func (s *InMemory) lockFor(pid id.PatientID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(pid[:])
	return &s.shards[h.Sum32()%numShards]
}

func sortNewestFirst(ps []*models.Profile) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

// keepIdentity restores the columns no update path may change.
// unchanged reports whether mutate left every stored field as it was.
func unchanged(before, after *models.Profile) bool {
	return reflect.DeepEqual(before, after)
}

func keepIdentity(dst, src *models.Profile) {
	dst.ID = src.ID
	dst.Email = src.Email
	dst.Role = src.Role
	dst.CreatedAt = src.CreatedAt
}
