package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist for the tenant.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a lifecycle action is not allowed
	// from the cycle's current status.
	ErrInvalidTransition = errors.New("invalid cycle transition")

	// ErrConflict is returned when an operation's preconditions are not met.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries human-readable violations, e.g. threshold invariants.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
