package handler

import (
	"strings"

	regmodels "campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// GuestRequest describes a non-member registrant paid for by the caller.
type GuestRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"max=32"`
}

// CheckoutRequest is the body of POST /events/{eventID}/checkout.
type CheckoutRequest struct {
	TeamID         string            `json:"team_id,omitempty"`
	Guest          *GuestRequest     `json:"guest,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty" validate:"max=2000"`
	Fields         map[string]string `json:"fields,omitempty" validate:"max=50"`
}

func (r *CheckoutRequest) Normalize() {
	r.TeamID = strings.TrimSpace(r.TeamID)
	if r.Guest != nil {
		r.Guest.Name = strings.TrimSpace(r.Guest.Name)
		r.Guest.Email = strings.ToLower(strings.TrimSpace(r.Guest.Email))
		r.Guest.Phone = strings.TrimSpace(r.Guest.Phone)
	}
}

func (r *CheckoutRequest) Validate() error {
	if r.TeamID != "" {
		if _, err := id.ParseTeamID(r.TeamID); err != nil {
			return err
		}
		if r.Guest != nil {
			return dErrors.New(dErrors.CodeValidation, "guests cannot register as part of a team")
		}
	}
	return nil
}

// Registrant returns the guest when one is given, otherwise the caller.
func (r *CheckoutRequest) Registrant(caller id.UserID) regmodels.Registrant {
	if r.Guest != nil {
		return regmodels.Guest(r.Guest.Name, r.Guest.Email, r.Guest.Phone)
	}
	return regmodels.Member(caller)
}

// ParsedTeamID returns nil when no team was given. Validate has already
// checked the format.
func (r *CheckoutRequest) ParsedTeamID() *id.TeamID {
	if r.TeamID == "" {
		return nil
	}
	teamID, _ := id.ParseTeamID(r.TeamID)
	return &teamID
}

func (r *CheckoutRequest) Metadata() regmodels.Metadata {
	return regmodels.Metadata{AdditionalInfo: r.AdditionalInfo, Fields: r.Fields}
}
