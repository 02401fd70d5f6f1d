package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

type pairKey struct {
	event id.EventID
	user  id.UserID
}

// InMemory stores registration records and indexes the confirmed one per
// (event, user) pair, mirroring the partial unique index of the Postgres schema.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[id.RegistrationID]*models.Registration
	confirmed map[pairKey]id.RegistrationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[id.RegistrationID]*models.Registration),
		confirmed: make(map[pairKey]id.RegistrationID),
	}
}

func (s *InMemory) Create(_ context.Context, r *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.ID]; exists {
		return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrAlreadyUsed)
	}
	if err := s.checkConfirmedLocked(r); err != nil {
		return err
	}
	s.put(r)
	return nil
}

func (s *InMemory) Update(_ context.Context, r *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.byID[r.ID]
	if !ok {
		return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrNotFound)
	}
	if err := s.checkConfirmedLocked(r); err != nil {
		return err
	}
	if prev.IsConfirmed() && !r.IsConfirmed() {
		delete(s.confirmed, pairKey{prev.EventID, prev.UserID})
	}
	s.put(r)
	return nil
}

func (s *InMemory) checkConfirmedLocked(r *models.Registration) error {
	if !r.IsConfirmed() {
		return nil
	}
	if existing, ok := s.confirmed[pairKey{r.EventID, r.UserID}]; ok && existing != r.ID {
		return fmt.Errorf("confirmed registration for user %s at event %s: %w", r.UserID, r.EventID, sentinel.ErrConflict)
	}
	return nil
}

func (s *InMemory) put(r *models.Registration) {
	cp := clone(r)
	s.byID[r.ID] = cp
	if cp.IsConfirmed() {
		s.confirmed[pairKey{cp.EventID, cp.UserID}] = cp.ID
	}
}

func (s *InMemory) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[regID]
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	return clone(r), nil
}

func (s *InMemory) FindConfirmed(_ context.Context, eventID id.EventID, userID id.UserID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regID, ok := s.confirmed[pairKey{eventID, userID}]
	if !ok {
		return nil, fmt.Errorf("confirmed registration: %w", sentinel.ErrNotFound)
	}
	return clone(s.byID[regID]), nil
}

func (s *InMemory) ListByEvent(_ context.Context, eventID id.EventID) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, r := range s.byID {
		if r.EventID == eventID {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func clone(r *models.Registration) *models.Registration {
	cp := *r
	if r.TeamID != nil {
		t := *r.TeamID
		cp.TeamID = &t
	}
	if r.CancelledAt != nil {
		c := *r.CancelledAt
		cp.CancelledAt = &c
	}
	if r.Fields != nil {
		cp.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			cp.Fields[k] = v
		}
	}
	return &cp
}
