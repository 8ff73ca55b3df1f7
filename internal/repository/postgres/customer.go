package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// CustomerRepository implements repository.CustomerRepository using PostgreSQL.
type CustomerRepository struct {
	q Querier
}

// Create adds a new customer.
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `INSERT INTO customers (id, name, phone) VALUES ($1, $2, $3)`
	_, err := r.q.ExecContext(ctx, query, customer.ID, customer.Name, customer.Phone)
	return uniqueViolation(err)
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), created_at FROM customers WHERE id = $1`

	var customer domain.Customer
	err := r.q.QueryRowContext(ctx, query, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// AppendRideHistory records a finished ride.
func (r *CustomerRepository) AppendRideHistory(ctx context.Context, customerID, rideID string) error {
	query := `
		INSERT INTO customer_ride_history (customer_id, ride_id)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, ride_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, customerID, rideID)
	return err
}

// RideHistory returns finished ride IDs, oldest first.
func (r *CustomerRepository) RideHistory(ctx context.Context, customerID string) ([]string, error) {
	query := `SELECT ride_id FROM customer_ride_history WHERE customer_id = $1 ORDER BY recorded_at, ride_id`
	rows, err := r.q.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rideIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		rideIDs = append(rideIDs, id)
	}
	return rideIDs, rows.Err()
}
