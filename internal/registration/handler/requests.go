package handler

import (
	"strings"

	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
)

// GuestRequest describes a non-member the caller registers on their behalf.
type GuestRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"max=32"`
}

// RegisterRequest is the body of POST /events/{eventID}/registrations.
type RegisterRequest struct {
	Guest          *GuestRequest     `json:"guest,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty" validate:"max=2000"`
	Fields         map[string]string `json:"fields,omitempty" validate:"max=50"`
}

func (r *RegisterRequest) Normalize() {
	r.AdditionalInfo = strings.TrimSpace(r.AdditionalInfo)
	if r.Guest != nil {
		r.Guest.Name = strings.TrimSpace(r.Guest.Name)
		r.Guest.Email = strings.ToLower(strings.TrimSpace(r.Guest.Email))
		r.Guest.Phone = strings.TrimSpace(r.Guest.Phone)
	}
}

// Registrant returns the guest when one is given, otherwise the caller.
func (r *RegisterRequest) Registrant(caller id.UserID) models.Registrant {
	if r.Guest != nil {
		return models.Guest(r.Guest.Name, r.Guest.Email, r.Guest.Phone)
	}
	return models.Member(caller)
}

func (r *RegisterRequest) Metadata() models.Metadata {
	return models.Metadata{AdditionalInfo: r.AdditionalInfo, Fields: r.Fields}
}

// TeamRegisterRequest is the body of POST /events/{eventID}/teams/{teamID}/registrations.
type TeamRegisterRequest struct {
	AdditionalInfo string            `json:"additional_info,omitempty" validate:"max=2000"`
	Fields         map[string]string `json:"fields,omitempty" validate:"max=50"`
}

func (r *TeamRegisterRequest) Normalize() {
	r.AdditionalInfo = strings.TrimSpace(r.AdditionalInfo)
}

func (r *TeamRegisterRequest) Metadata() models.Metadata {
	return models.Metadata{AdditionalInfo: r.AdditionalInfo, Fields: r.Fields}
}

// CreateTeamRequest is the body of POST /events/{eventID}/teams.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (r *CreateTeamRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}
