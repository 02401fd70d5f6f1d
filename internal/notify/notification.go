// Package notify hands registration outcomes to the notification service.
//
// Delivery is fire-and-forget: Dispatcher.Notify never blocks the caller, the
// buffer drops the oldest entries when full, and sink errors are logged and
// counted but not retried.
package notify

import (
	"context"
	"time"

	id "campusreg/pkg/domain"
)

// Kind names the notification template the downstream service renders.
type Kind string

const (
	KindRegistrationSucceeded Kind = "registration_succeeded"
	KindRegistrationCancelled Kind = "registration_cancelled"
	KindPaymentRequired       Kind = "payment_required"
	KindPaymentFailed         Kind = "payment_failed"
	KindRefundRequired        Kind = "refund_required"
)

type Notification struct {
	Kind           Kind               `json:"kind"`
	UserID         id.UserID          `json:"user_id"`
	EventID        id.EventID         `json:"event_id"`
	RegistrationID *id.RegistrationID `json:"registration_id,omitempty"`
	TeamID         *id.TeamID         `json:"team_id,omitempty"`
	OrderID        *id.OrderID        `json:"order_id,omitempty"`
	CheckoutURL    string             `json:"checkout_url,omitempty"`
	At             time.Time          `json:"at"`
}

// Notifier is the producer-side contract used by services.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Sink delivers a batch to one backend.
type Sink interface {
	Send(ctx context.Context, batch []Notification) error
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}
