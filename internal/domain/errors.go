package domain

import "errors"

// Error kinds shared by every layer. Specific errors wrap one of these so
// callers can classify a failure with errors.Is.
var (
	// ErrNotFound is returned when a ride, driver or customer does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a transition is attempted from the wrong status.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned when a competing actor won a race.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when the actor may not act on the ride.
	ErrUnauthorized = errors.New("unauthorized")
)
