package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

const maxTeamNameLength = 64

// Member is one roster entry, in join order.
type Member struct {
	UserID   id.UserID `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	Email    string    `json:"email,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// Team is a named roster scoped to one event.
//
// Invariants:
//   - Name is unique per event, compared case-insensitively
//   - a user appears on at most one team per event
//   - Members keeps join order; the creator is first
type Team struct {
	ID        id.TeamID  `json:"id"`
	EventID   id.EventID `json:"event_id"`
	Name      string     `json:"name"`
	Members   []Member   `json:"members"`
	CreatedBy id.UserID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// NormalizeName is the comparison key for team-name uniqueness.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func NewTeam(teamID id.TeamID, eventID id.EventID, name string, creator Member, now time.Time) (*Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxTeamNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team name must be 64 characters or less")
	}
	if creator.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team creator is required")
	}
	creator.JoinedAt = now
	return &Team{
		ID:        teamID,
		EventID:   eventID,
		Name:      name,
		Members:   []Member{creator},
		CreatedBy: creator.UserID,
		CreatedAt: now,
	}, nil
}

func (t *Team) HasMember(userID id.UserID) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the roster reached maxSize. Zero means unlimited.
func (t *Team) IsFull(maxSize int) bool {
	return maxSize > 0 && len(t.Members) >= maxSize
}

// Clone returns a deep copy so stores never share roster slices with callers.
func (t *Team) Clone() *Team {
	cp := *t
	cp.Members = append([]Member(nil), t.Members...)
	return &cp
}
