package handler

import (
	"time"

	"campusreg/internal/catalog"
	"campusreg/internal/payment/models"
)

// OrderResponse is the client view of a checkout order.
type OrderResponse struct {
	OrderID        string        `json:"order_id"`
	EventID        string        `json:"event_id"`
	TeamID         string        `json:"team_id,omitempty"`
	State          string        `json:"state"`
	Amount         catalog.Money `json:"amount"`
	CheckoutURL    string        `json:"checkout_url,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	RegistrationID string        `json:"registration_id,omitempty"`
	RefundRequired bool          `json:"refund_required,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func FromOrder(o *models.Order) OrderResponse {
	resp := OrderResponse{
		OrderID:        o.ID.String(),
		EventID:        o.EventID.String(),
		State:          string(o.State),
		Amount:         o.Amount,
		CheckoutURL:    o.CheckoutURL,
		FailureReason:  o.FailureReason,
		RefundRequired: o.RefundRequired(),
		UpdatedAt:      o.UpdatedAt,
	}
	if o.TeamID != nil {
		resp.TeamID = o.TeamID.String()
	}
	if o.RegistrationID != nil {
		resp.RegistrationID = o.RegistrationID.String()
	}
	return resp
}
