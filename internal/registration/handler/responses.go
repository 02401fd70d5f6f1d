package handler

import (
	"time"

	"campusreg/internal/registration/models"
	teammodels "campusreg/internal/team/models"
)

type RegistrationResponse struct {
	RegistrationID    string            `json:"registration_id"`
	EventID           string            `json:"event_id"`
	UserID            string            `json:"user_id"`
	Registrant        models.Registrant `json:"registrant"`
	TeamID            string            `json:"team_id,omitempty"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status,omitempty"`
	AdditionalInfo    string            `json:"additional_info,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	AlreadyRegistered bool              `json:"already_registered,omitempty"`
}

func FromRegistration(r *models.Registration) RegistrationResponse {
	resp := RegistrationResponse{
		RegistrationID: r.ID.String(),
		EventID:        r.EventID.String(),
		UserID:         r.UserID.String(),
		Registrant:     r.Registrant,
		Status:         string(r.Status),
		PaymentStatus:  string(r.PaymentStatus),
		AdditionalInfo: r.AdditionalInfo,
		Fields:         r.Fields,
		CreatedAt:      r.CreatedAt,
		CancelledAt:    r.CancelledAt,
	}
	if r.TeamID != nil {
		resp.TeamID = r.TeamID.String()
	}
	return resp
}

type RegistrationListResponse struct {
	Registrations []RegistrationResponse `json:"registrations"`
	Confirmed     int                    `json:"confirmed"`
}

func FromRegistrations(regs []*models.Registration) RegistrationListResponse {
	out := RegistrationListResponse{Registrations: make([]RegistrationResponse, 0, len(regs))}
	for _, r := range regs {
		out.Registrations = append(out.Registrations, FromRegistration(r))
		if r.IsConfirmed() {
			out.Confirmed++
		}
	}
	return out
}

type StatusResponse struct {
	EventID    string `json:"event_id"`
	Registered bool   `json:"registered"`
}

type MemberResponse struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type TeamResponse struct {
	TeamID    string           `json:"team_id"`
	EventID   string           `json:"event_id"`
	Name      string           `json:"name"`
	Members   []MemberResponse `json:"members"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

// FromTeam leaves member emails out: rosters are visible to every student.
func FromTeam(t *teammodels.Team) TeamResponse {
	members := make([]MemberResponse, 0, len(t.Members))
	for _, m := range t.Members {
		members = append(members, MemberResponse{UserID: m.UserID.String(), Name: m.Name, JoinedAt: m.JoinedAt})
	}
	return TeamResponse{
		TeamID:    t.ID.String(),
		EventID:   t.EventID.String(),
		Name:      t.Name,
		Members:   members,
		CreatedBy: t.CreatedBy.String(),
		CreatedAt: t.CreatedAt,
	}
}

type TeamListResponse struct {
	Teams []TeamResponse `json:"teams"`
}

func FromTeams(teams []*teammodels.Team) TeamListResponse {
	out := TeamListResponse{Teams: make([]TeamResponse, 0, len(teams))}
	for _, t := range teams {
		out.Teams = append(out.Teams, FromTeam(t))
	}
	return out
}
