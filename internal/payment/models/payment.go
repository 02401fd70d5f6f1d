package models

import (
	"time"

	"campusreg/internal/catalog"
	id "campusreg/pkg/domain"
)

// PaymentRecord is written once, in the same transaction that confirms a paid
// registration, and never mutated or deleted afterwards.
//
// A Duplicate record is a second payment captured for a user who was already
// registered. It points at the existing registration, does not back it, and is
// kept so the payment can be refunded.
type PaymentRecord struct {
	PaymentID      id.PaymentID      `json:"payment_id"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	EventID        id.EventID        `json:"event_id"`
	ClubID         id.ClubID         `json:"club_id"`
	UserID         id.UserID         `json:"user_id"`
	Amount         catalog.Money     `json:"amount"`
	Duplicate      bool              `json:"duplicate,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// CallbackOutcome is the normalized result reported by a gateway callback.
type CallbackOutcome string

const (
	OutcomeSucceeded CallbackOutcome = "succeeded"
	OutcomeFailed    CallbackOutcome = "failed"
	OutcomeCancelled CallbackOutcome = "cancelled"
	// OutcomeIgnored is returned for gateway events the gate does not act on.
	OutcomeIgnored CallbackOutcome = "ignored"
)

// CallbackEvent is a verified, provider-neutral gateway notification.
type CallbackEvent struct {
	Outcome       CallbackOutcome
	OrderID       id.OrderID // our reference, echoed back by the gateway
	ProviderRef   string
	PaymentID     id.PaymentID
	Amount        *catalog.Money
	FailureReason string
}

// CheckoutSession is what a gateway returns for a newly created order.
type CheckoutSession struct {
	ProviderRef string
	CheckoutURL string
}
