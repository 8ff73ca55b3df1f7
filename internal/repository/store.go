package repository

import "context"

// Store groups the repositories of the ride lifecycle store.
type Store interface {
	Rides() RideRepository
	Drivers() DriverRepository
	Customers() CustomerRepository

	// WithTx runs fn against a Store bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}
