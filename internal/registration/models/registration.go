package models

import (
	"strings"
	"time"

	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// Status is the lifecycle state of a registration record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	// StatusFailed marks a record whose paired membership write did not land.
	StatusFailed Status = "failed"
)

// CanTransitionTo enforces pending → confirmed|failed and confirmed → cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusFailed
	case StatusConfirmed:
		return next == StatusCancelled
	default:
		return false
	}
}

// PaymentStatus is only set for fee-bearing events.
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = ""
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Metadata is the caller-supplied part of a registration form.
type Metadata struct {
	AdditionalInfo string            `json:"additional_info,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// Registration is durable evidence that a member or guest is registered for an
// event.
//
// Invariants:
//   - at most one confirmed record exists per (EventID, UserID)
//   - UserID is the member's ID, or the ID derived from the guest's email
//   - CancelledAt is set iff Status is cancelled
type Registration struct {
	ID             id.RegistrationID `json:"id"`
	EventID        id.EventID        `json:"event_id"`
	ClubID         id.ClubID         `json:"club_id"`
	UserID         id.UserID         `json:"user_id"`
	Registrant     Registrant        `json:"registrant"`
	TeamID         *id.TeamID        `json:"team_id,omitempty"`
	Status         Status            `json:"status"`
	PaymentStatus  PaymentStatus     `json:"payment_status,omitempty"`
	PaymentID      id.PaymentID      `json:"payment_id,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
}

// NewPending builds a record in the pending state. It becomes visible as
// registered only once Confirm is applied in the same transaction as the
// membership write.
func NewPending(regID id.RegistrationID, eventID id.EventID, clubID id.ClubID, registrant Registrant, meta Metadata, now time.Time) (*Registration, error) {
	if err := registrant.Validate(); err != nil {
		return nil, err
	}
	if len(meta.AdditionalInfo) > 2000 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "additional info must be 2000 characters or less")
	}
	fields := make(map[string]string, len(meta.Fields))
	for k, v := range meta.Fields {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}
	return &Registration{
		ID:             regID,
		EventID:        eventID,
		ClubID:         clubID,
		UserID:         registrant.EffectiveUserID(),
		Registrant:     registrant,
		Status:         StatusPending,
		AdditionalInfo: strings.TrimSpace(meta.AdditionalInfo),
		Fields:         fields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (r *Registration) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

func (r *Registration) IsCancelled() bool {
	return r.Status == StatusCancelled
}

func (r *Registration) transition(next Status, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"registration cannot move from "+string(r.Status)+" to "+string(next))
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

func (r *Registration) Confirm(now time.Time) error {
	return r.transition(StatusConfirmed, now)
}

func (r *Registration) Fail(now time.Time) error {
	return r.transition(StatusFailed, now)
}

// CanCancel checks the confirmed → cancelled transition without applying it.
func (r *Registration) CanCancel() error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only confirmed registrations can be cancelled")
	}
	return nil
}

func (r *Registration) ApplyCancellation(now time.Time) {
	r.Status = StatusCancelled
	r.UpdatedAt = now
	r.CancelledAt = &now
}

// MarkPaid attaches gateway evidence to a paid registration.
func (r *Registration) MarkPaid(paymentID id.PaymentID) {
	r.PaymentStatus = PaymentStatusPaid
	r.PaymentID = paymentID
}
