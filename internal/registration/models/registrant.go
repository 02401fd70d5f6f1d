package models

import (
	"net/mail"
	"strings"

	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// RegistrantKind tags which variant of Registrant is populated.
type RegistrantKind string

const (
	RegistrantMember RegistrantKind = "member"
	RegistrantGuest  RegistrantKind = "guest"
)

// Registrant is a tagged union: a Member carries only a user ID; a Guest carries
// contact details and is keyed by an ID derived from its email.
type Registrant struct {
	Kind   RegistrantKind `json:"kind"`
	UserID id.UserID      `json:"user_id,omitempty"`
	Name   string         `json:"name,omitempty"`
	Email  string         `json:"email,omitempty"`
	Phone  string         `json:"phone,omitempty"`
}

func Member(userID id.UserID) Registrant {
	return Registrant{Kind: RegistrantMember, UserID: userID}
}

func Guest(name, email, phone string) Registrant {
	return Registrant{
		Kind:  RegistrantGuest,
		Name:  strings.TrimSpace(name),
		Email: strings.ToLower(strings.TrimSpace(email)),
		Phone: strings.TrimSpace(phone),
	}
}

func (r Registrant) IsGuest() bool {
	return r.Kind == RegistrantGuest
}

// EffectiveUserID is the key used for duplicate prevention and the membership
// index.
func (r Registrant) EffectiveUserID() id.UserID {
	if r.IsGuest() {
		return id.GuestUserID(r.Email)
	}
	return r.UserID
}

func (r Registrant) Validate() error {
	switch r.Kind {
	case RegistrantMember:
		if r.UserID.IsNil() {
			return dErrors.New(dErrors.CodeInvalidInput, "member registrant requires a user id")
		}
	case RegistrantGuest:
		if r.Name == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "guest name is required")
		}
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "guest email is invalid")
		}
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown registrant kind")
	}
	return nil
}
