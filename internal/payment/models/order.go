package models

import (
	"time"

	"campusreg/internal/catalog"
	regmodels "campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// OrderState is the payment gate state for one checkout attempt.
//
//	NotStarted → OrderCreated → PaymentSucceeded | PaymentFailed | PaymentCancelled
//	NotStarted → PaymentFailed (the gateway refused to create the order)
//
// The three outcomes are terminal.
type OrderState string

const (
	StateNotStarted       OrderState = "not_started"
	StateOrderCreated     OrderState = "order_created"
	StatePaymentSucceeded OrderState = "payment_succeeded"
	StatePaymentFailed    OrderState = "payment_failed"
	StatePaymentCancelled OrderState = "payment_cancelled"
)

func (s OrderState) IsTerminal() bool {
	return s == StatePaymentSucceeded || s == StatePaymentFailed || s == StatePaymentCancelled
}

func (s OrderState) CanTransitionTo(next OrderState) bool {
	switch s {
	case StateNotStarted:
		return next == StateOrderCreated || next == StatePaymentFailed
	case StateOrderCreated:
		return next.IsTerminal()
	default:
		return false
	}
}

// Order carries everything needed to create the registration once the gateway
// confirms payment, so the callback does not depend on the user's session.
type Order struct {
	ID             id.OrderID           `json:"id"`
	EventID        id.EventID           `json:"event_id"`
	UserID         id.UserID            `json:"user_id"`
	Registrant     regmodels.Registrant `json:"registrant"`
	TeamID         *id.TeamID           `json:"team_id,omitempty"`
	Metadata       regmodels.Metadata   `json:"metadata"`
	Amount         catalog.Money        `json:"amount"`
	Provider       string               `json:"provider"`
	ProviderRef    string               `json:"provider_ref,omitempty"`
	CheckoutURL    string               `json:"checkout_url,omitempty"`
	PaymentID      id.PaymentID         `json:"payment_id,omitempty"`
	State          OrderState           `json:"state"`
	FailureReason  string               `json:"failure_reason,omitempty"`
	RegistrationID *id.RegistrationID   `json:"registration_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func NewOrder(orderID id.OrderID, eventID id.EventID, registrant regmodels.Registrant, teamID *id.TeamID, meta regmodels.Metadata, amount catalog.Money, provider string, now time.Time) *Order {
	return &Order{
		ID:         orderID,
		EventID:    eventID,
		UserID:     registrant.EffectiveUserID(),
		Registrant: registrant,
		TeamID:     teamID,
		Metadata:   meta,
		Amount:     amount,
		Provider:   provider,
		State:      StateNotStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (o *Order) transition(next OrderState, now time.Time) error {
	if !o.State.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"order cannot move from "+string(o.State)+" to "+string(next))
	}
	o.State = next
	o.UpdatedAt = now
	return nil
}

// MarkCreated records the gateway order handle.
func (o *Order) MarkCreated(providerRef, checkoutURL string, now time.Time) error {
	if err := o.transition(StateOrderCreated, now); err != nil {
		return err
	}
	o.ProviderRef = providerRef
	o.CheckoutURL = checkoutURL
	return nil
}

func (o *Order) Succeed(paymentID id.PaymentID, now time.Time) error {
	if paymentID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment success requires a payment id")
	}
	if err := o.transition(StatePaymentSucceeded, now); err != nil {
		return err
	}
	o.PaymentID = paymentID
	return nil
}

func (o *Order) Fail(reason string, now time.Time) error {
	if err := o.transition(StatePaymentFailed, now); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

func (o *Order) Cancel(now time.Time) error {
	return o.transition(StatePaymentCancelled, now)
}

// AttachRegistration links the registration created after success.
func (o *Order) AttachRegistration(regID id.RegistrationID, now time.Time) {
	o.RegistrationID = &regID
	o.UpdatedAt = now
}

// ReasonDuplicatePayment marks a succeeded order whose user was already
// registered by another order. The payment must be refunded.
const ReasonDuplicatePayment = "duplicate_payment_refund_required"

// FlagDuplicatePayment links a succeeded order to the registration another
// order created and marks the payment for refund.
func (o *Order) FlagDuplicatePayment(regID id.RegistrationID, now time.Time) {
	o.AttachRegistration(regID, now)
	o.FailureReason = ReasonDuplicatePayment
}

// RefundRequired reports whether the order's payment was captured for a user
// who was already registered.
func (o *Order) RefundRequired() bool {
	return o.State == StatePaymentSucceeded && o.FailureReason == ReasonDuplicatePayment
}

// NeedsRegistration is true for a succeeded order whose registration has not
// been created yet.
func (o *Order) NeedsRegistration() bool {
	return o.State == StatePaymentSucceeded && o.RegistrationID == nil
}
