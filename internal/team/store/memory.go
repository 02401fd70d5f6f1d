package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"campusreg/internal/team/models"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

type nameKey struct {
	event id.EventID
	name  string
}

type memberKey struct {
	event id.EventID
	user  id.UserID
}

// InMemory is the team registry for tests and single-node runs.
type InMemory struct {
	mu       sync.RWMutex
	teams    map[id.TeamID]*models.Team
	byName   map[nameKey]id.TeamID
	byMember map[memberKey]id.TeamID
}

func NewInMemory() *InMemory {
	return &InMemory{
		teams:    make(map[id.TeamID]*models.Team),
		byName:   make(map[nameKey]id.TeamID),
		byMember: make(map[memberKey]id.TeamID),
	}
}

// CreateIfNameAvailable inserts the team unless the event already has a team with
// the same case-insensitive name (sentinel.ErrAlreadyUsed) or one of its members
// already sits on another team for the event (sentinel.ErrConflict).
func (s *InMemory) CreateIfNameAvailable(_ context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey{team.EventID, models.NormalizeName(team.Name)}
	if _, taken := s.byName[key]; taken {
		return fmt.Errorf("team name %q: %w", team.Name, sentinel.ErrAlreadyUsed)
	}
	for _, m := range team.Members {
		if _, on := s.byMember[memberKey{team.EventID, m.UserID}]; on {
			return fmt.Errorf("user %s already on a team: %w", m.UserID, sentinel.ErrConflict)
		}
	}
	s.teams[team.ID] = team.Clone()
	s.byName[key] = team.ID
	for _, m := range team.Members {
		s.byMember[memberKey{team.EventID, m.UserID}] = team.ID
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, eventID id.EventID, teamID id.TeamID) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[teamID]
	if !ok || t.EventID != eventID {
		return nil, fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *InMemory) FindByName(_ context.Context, eventID id.EventID, name string) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teamID, ok := s.byName[nameKey{eventID, models.NormalizeName(name)}]
	if !ok {
		return nil, fmt.Errorf("team name %q: %w", name, sentinel.ErrNotFound)
	}
	return s.teams[teamID].Clone(), nil
}

func (s *InMemory) FindByMember(_ context.Context, eventID id.EventID, userID id.UserID) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teamID, ok := s.byMember[memberKey{eventID, userID}]
	if !ok {
		return nil, fmt.Errorf("team for user %s: %w", userID, sentinel.ErrNotFound)
	}
	return s.teams[teamID].Clone(), nil
}

func (s *InMemory) AddMember(_ context.Context, teamID id.TeamID, member models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
	}
	if _, on := s.byMember[memberKey{t.EventID, member.UserID}]; on {
		return fmt.Errorf("user %s already on a team: %w", member.UserID, sentinel.ErrConflict)
	}
	t.Members = append(t.Members, member)
	s.byMember[memberKey{t.EventID, member.UserID}] = teamID
	return nil
}

func (s *InMemory) RemoveMember(_ context.Context, teamID id.TeamID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return nil
	}
	kept := t.Members[:0]
	for _, m := range t.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	t.Members = kept
	if s.byMember[memberKey{t.EventID, userID}] == teamID {
		delete(s.byMember, memberKey{t.EventID, userID})
	}
	return nil
}

// DeleteIfEmpty removes a team with no members and frees its name. It reports
// whether the team was removed; a missing team is not an error.
func (s *InMemory) DeleteIfEmpty(_ context.Context, teamID id.TeamID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok || len(t.Members) > 0 {
		return false, nil
	}
	delete(s.teams, teamID)
	key := nameKey{t.EventID, models.NormalizeName(t.Name)}
	if s.byName[key] == teamID {
		delete(s.byName, key)
	}
	return true, nil
}

// SearchByPrefix returns the event's teams whose name starts with prefix,
// case-insensitively, ordered by name.
func (s *InMemory) SearchByPrefix(_ context.Context, eventID id.EventID, prefix string, limit int) ([]*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := models.NormalizeName(prefix)
	var out []*models.Team
	for _, t := range s.teams {
		if t.EventID == eventID && strings.HasPrefix(models.NormalizeName(t.Name), p) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return models.NormalizeName(out[i].Name) < models.NormalizeName(out[j].Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
