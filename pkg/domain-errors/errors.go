// Package domainerrors carries coded errors across service boundaries.
//
// Services return *Error values whose Code is stable and transport-agnostic.
// Handlers map codes onto HTTP statuses; callers branch with HasCode instead of
// comparing messages. Stores should not use this package directly: they return
// sentinel errors (pkg/platform/sentinel) which services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers deciding between retry and abandon.
type Code string

// Generic codes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Registration codes.
const (
	// CodeAlreadyRegistered is success-equivalent: the caller already holds a
	// confirmed registration and should show the "you are registered" outcome.
	CodeAlreadyRegistered Code = "already_registered"
	// CodePaymentRequired is a control-flow signal that starts checkout.
	CodePaymentRequired Code = "payment_required"
	CodeDuplicateTeamName Code = "duplicate_team_name"
	CodeTeamNotFound      Code = "team_not_found"
	CodeAlreadyOnTeam     Code = "already_on_team"
	CodeTeamFull          Code = "team_full"
	CodeNotTeamMember     Code = "not_team_member"
	// CodeMembershipWriteFailed is an infrastructure failure; the whole
	// registration attempt was aborted and may be retried.
	CodeMembershipWriteFailed Code = "membership_write_failed"
	// CodePaymentVerificationFailed means the payment evidence could not be
	// confirmed; no registration was created.
	CodePaymentVerificationFailed Code = "payment_verification_failed"
)

// Error is a coded domain error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message, falling back to a generic one
// so internal causes are never leaked to clients.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
