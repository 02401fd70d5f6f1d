// Package membership implements the bidirectional membership index: the
// user→events and event→users projections, always written together.
//
// Every backend applies both sides of an add or remove as one atomic write and
// treats repeats as no-ops. Only the registration orchestrator writes here.
package membership

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "campusreg/pkg/domain"
)

// InMemory guards both projections with a single mutex so readers never observe
// one side without the other.
type InMemory struct {
	mu      sync.RWMutex
	byUser  map[id.UserID]map[id.EventID]struct{}
	byEvent map[id.EventID]map[id.UserID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		byUser:  make(map[id.UserID]map[id.EventID]struct{}),
		byEvent: make(map[id.EventID]map[id.UserID]struct{}),
	}
}

func (s *InMemory) AddMembership(_ context.Context, userID id.UserID, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.byUser[userID]
	if !ok {
		events = make(map[id.EventID]struct{})
		s.byUser[userID] = events
	}
	users, ok := s.byEvent[eventID]
	if !ok {
		users = make(map[id.UserID]struct{})
		s.byEvent[eventID] = users
	}
	events[eventID] = struct{}{}
	users[userID] = struct{}{}
	return nil
}

func (s *InMemory) RemoveMembership(_ context.Context, userID id.UserID, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events, ok := s.byUser[userID]; ok {
		delete(events, eventID)
		if len(events) == 0 {
			delete(s.byUser, userID)
		}
	}
	if users, ok := s.byEvent[eventID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(s.byEvent, eventID)
		}
	}
	return nil
}

func (s *InMemory) IsMember(_ context.Context, userID id.UserID, eventID id.EventID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUser[userID][eventID]
	return ok, nil
}

func (s *InMemory) MembersOf(_ context.Context, eventID id.EventID) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.UserID, 0, len(s.byEvent[eventID]))
	for u := range s.byEvent[eventID] {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *InMemory) EventsOf(_ context.Context, userID id.UserID) ([]id.EventID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.EventID, 0, len(s.byUser[userID]))
	for e := range s.byUser[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Verify checks that the two projections are exact inverses.
func (s *InMemory) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for u, events := range s.byUser {
		for e := range events {
			if _, ok := s.byEvent[e][u]; !ok {
				return fmt.Errorf("user %s lists event %s but the event side does not", u, e)
			}
		}
	}
	for e, users := range s.byEvent {
		for u := range users {
			if _, ok := s.byUser[u][e]; !ok {
				return fmt.Errorf("event %s lists user %s but the user side does not", e, u)
			}
		}
	}
	return nil
}
