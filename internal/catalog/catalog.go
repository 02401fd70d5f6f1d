// Package catalog is the read-only view of the content service: events, their
// organizing club, fee and registration mode.
package catalog

import (
	"context"
	"strings"
	"time"

	id "campusreg/pkg/domain"
)

// RegistrationMode says whether an event registers people one by one or as teams.
type RegistrationMode string

const (
	ModeIndividual RegistrationMode = "individual"
	ModeTeam       RegistrationMode = "team"
)

// Money is an amount in the currency's minor unit.
type Money struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (m *Money) IsZero() bool {
	return m == nil || m.AmountCents <= 0
}

// Covers reports whether the paid amount m covers fee in the same currency.
func (m Money) Covers(fee Money) bool {
	return strings.EqualFold(m.Currency, fee.Currency) && m.AmountCents >= fee.AmountCents
}

// Event is the content-service read model the registration core depends on.
// Registered users are served by the membership index, never stored here.
type Event struct {
	ID               id.EventID       `json:"id"`
	ClubID           id.ClubID        `json:"club_id"`
	Title            string           `json:"title"`
	Fee              *Money           `json:"fee,omitempty"`
	RegistrationMode RegistrationMode `json:"registration_mode"`
	MaxTeamSize      int              `json:"max_team_size,omitempty"` // 0 = unlimited
	StartsAt         time.Time        `json:"starts_at"`
}

func (e *Event) HasFee() bool {
	return !e.Fee.IsZero()
}

func (e *Event) IsTeamEvent() bool {
	return e.RegistrationMode == ModeTeam
}

// Catalog is the read surface consumed by the registration core.
type Catalog interface {
	FindEvent(ctx context.Context, eventID id.EventID) (*Event, error)
	ListEvents(ctx context.Context) ([]*Event, error)
}
