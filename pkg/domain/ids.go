package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "campusreg/pkg/domain-errors"
)

// Typed identifiers keep user, event, team and registration IDs from being
// swapped at call sites. All are UUID-backed except PaymentID, which is minted
// by the external payment gateway.
type (
	UserID         uuid.UUID
	EventID        uuid.UUID
	ClubID         uuid.UUID
	TeamID         uuid.UUID
	RegistrationID uuid.UUID
	OrderID        uuid.UUID
)

// PaymentID is the gateway-issued payment identifier (e.g. a Stripe payment intent).
type PaymentID string

// guestNamespace scopes derived guest user IDs so they never collide with
// identity-service UUIDs.
var guestNamespace = uuid.MustParse("6f1c8d8e-4a61-4f0a-9d53-5b1de0c2a7f4")

// GuestUserID derives a stable user ID for a non-member registrant from their
// normalized email address. The same email always maps to the same ID, which
// lets duplicate prevention and the membership index treat guests like members.
func GuestUserID(email string) UserID {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return UserID(uuid.NewSHA1(guestNamespace, []byte(normalized)))
}

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" format")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user ID", s)
	return UserID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("event ID", s)
	return EventID(u), err
}

func ParseClubID(s string) (ClubID, error) {
	u, err := parseUUID("club ID", s)
	return ClubID(u), err
}

func ParseTeamID(s string) (TeamID, error) {
	u, err := parseUUID("team ID", s)
	return TeamID(u), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID("registration ID", s)
	return RegistrationID(u), err
}

func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID("order ID", s)
	return OrderID(u), err
}

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id ClubID) String() string         { return uuid.UUID(id).String() }
func (id TeamID) String() string         { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id OrderID) String() string        { return uuid.UUID(id).String() }
func (id PaymentID) String() string      { return string(id) }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ClubID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id TeamID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool      { return strings.TrimSpace(string(id)) == "" }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON and
// map keys.
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ClubID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id TeamID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OrderID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ClubID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TeamID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RegistrationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrderID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
