package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped with
// fmt.Errorf and %w) and services translate them into coded domain errors.
//
//   - ErrNotFound: row or item does not exist
//   - ErrConflict: a uniqueness constraint rejected the write (team name, confirmed registration)
//   - ErrAlreadyUsed: the value is already claimed by another entity
//   - ErrInvalidState: entity is in the wrong state for the requested transition
//   - ErrUnavailable: backend temporarily unreachable
//
// Validation failures belong in pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
