package repository

import (
	"fmt"

	"ridedispatch/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = fmt.Errorf("entity %w", domain.ErrNotFound)

	// ErrAlreadyExists is returned when a unique field is already taken.
	ErrAlreadyExists = fmt.Errorf("entity already exists: %w", domain.ErrConflict)
	// ErrStatusMismatch is returned when a guarded update found the ride in a different status.
	ErrStatusMismatch = fmt.Errorf("%w: ride status changed", domain.ErrInvalidState)
)
