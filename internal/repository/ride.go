package repository

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// RideRepository defines the persistence operations for rides.
// Every status change is a guarded write against the current persisted status.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// ListByCustomer retrieves a customer's rides, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error)

	// GetActiveByDriver retrieves the non-terminal ride bound to a driver.
	GetActiveByDriver(ctx context.Context, driverID string) (*domain.Ride, error)

	// Assign binds driverID to a requested ride and moves it to accepted.
	Assign(ctx context.Context, id, driverID string, at time.Time) (*domain.Ride, error)

	// Transition moves the ride to status to if it is currently in one of from,
	// stamping the timestamp that belongs to the target status.
	Transition(ctx context.Context, id string, from []domain.RideStatus, to domain.RideStatus, at time.Time) (*domain.Ride, error)

	// Reopen unbinds driverID from a ride that has not started and returns it to requested.
	Reopen(ctx context.Context, id, driverID string) (*domain.Ride, error)
}
