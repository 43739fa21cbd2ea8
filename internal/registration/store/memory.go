package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboarding/internal/registration/models"
	"onboarding/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded registration store used when no database is
// configured and in unit tests.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Registration
	byEmail map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[uuid.UUID]*models.Registration),
		byEmail: make(map[string]uuid.UUID),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *InMemory) Create(_ context.Context, r *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := emailKey(r.Email)
	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("create registration: %w", sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("create registration: %w", sentinel.ErrAlreadyUsed)
	}
	s.byID[r.ID] = r.Clone()
	s.byEmail[key] = r.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("find registration by id: %w", sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("find registration by email: %w", sentinel.ErrNotFound)
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemory) MarkInfraSetupDone(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("mark infra setup done: %w", sentinel.ErrNotFound)
	}
	if r.InfraSetupDone {
		return fmt.Errorf("mark infra setup done: %w", sentinel.ErrInvalidState)
	}
	r.InfraSetupDone = true
	r.UpdatedAt = now
	return nil
}

func (s *InMemory) AppendReminderMark(_ context.Context, id uuid.UUID, day int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return false, fmt.Errorf("append reminder mark: %w", sentinel.ErrNotFound)
	}
	if r.HasMark(day) {
		return false, nil
	}
	r.TrialReminderSentMarks = append(r.TrialReminderSentMarks, day)
	r.UpdatedAt = now
	return true, nil
}

func (s *InMemory) ListInfraReady(_ context.Context, createdBefore time.Time) ([]*models.Registration, error) {
	return s.list(func(r *models.Registration) bool {
		return r.InfraSetupDone && r.CreatedAt.Before(createdBefore)
	}), nil
}

func (s *InMemory) ListFailed(_ context.Context) ([]*models.Registration, error) {
	return s.list(func(r *models.Registration) bool { return !r.InfraSetupDone }), nil
}

func (s *InMemory) DeleteByEmails(_ context.Context, emails []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range emails {
		key := emailKey(e)
		id, ok := s.byEmail[key]
		if !ok {
			continue
		}
		delete(s.byEmail, key)
		delete(s.byID, id)
		count++
	}
	return count, nil
}

func (s *InMemory) list(match func(*models.Registration) bool) []*models.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Registration, 0)
	for _, r := range s.byID {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
