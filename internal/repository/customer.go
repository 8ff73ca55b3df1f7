package repository

import (
	"context"

	"ridedispatch/internal/domain"
)

// CustomerRepository defines the persistence operations for customers.
type CustomerRepository interface {
	// Create adds a new customer.
	Create(ctx context.Context, customer *domain.Customer) error

	// GetByID retrieves a customer by ID.
	GetByID(ctx context.Context, id string) (*domain.Customer, error)

	// AppendRideHistory records a finished ride. Appending the same ride twice is a no-op.
	AppendRideHistory(ctx context.Context, customerID, rideID string) error

	// RideHistory returns finished ride IDs, oldest first.
	RideHistory(ctx context.Context, customerID string) ([]string, error)
}
