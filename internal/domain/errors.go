package domain

import "errors"

// Sentinel errors shared across aggregates. Callers branch with errors.Is;
// anything wrapping ErrValidation or ErrConflict is a caller fault, not an
// infrastructure failure.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input or a violated precondition.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates an illegal state transition or a business-rule
	// conflict such as reserving already-held seats.
	ErrConflict = errors.New("conflict")

	// ErrSeatsUnavailable indicates one or more requested seats are held.
	ErrSeatsUnavailable = errors.New("one or more seats are not available")
)
