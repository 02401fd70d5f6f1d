package service

import (
	"errors"

	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
)

// membershipError marks a failure of the membership index write so the
// orchestrator can tell it apart from record-store failures after the
// transaction has unwound.
type membershipError struct {
	err error
}

func (e *membershipError) Error() string { return "membership write: " + e.err.Error() }
func (e *membershipError) Unwrap() error { return e.err }

// wrapStoreErr maps store sentinels onto domain codes. Errors that already
// carry a code pass through unchanged.
func wrapStoreErr(err error, notFound dErrors.Code, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	var me *membershipError
	if errors.As(err, &me) {
		return dErrors.Wrap(err, dErrors.CodeMembershipWriteFailed, "membership write failed")
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, notFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
