package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (id, name, phone, vehicle_class, status) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query, driver.ID, driver.Name, driver.Phone, driver.VehicleClass, driver.Status)
	return uniqueViolation(err)
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(phone, ''), vehicle_class, status,
			COALESCE(last_ride_id, ''), COALESCE(last_lat, 0), COALESCE(last_lng, 0)
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.VehicleClass,
		&driver.Status,
		&driver.LastRideID,
		&driver.LastLat,
		&driver.LastLng,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	return r.exec(ctx, `UPDATE drivers SET status = $1 WHERE id = $2`, status, id)
}

// Release marks the driver available after a ride and records where it ended.
func (r *DriverRepository) Release(ctx context.Context, id, lastRideID string, lat, lng float64) error {
	query := `UPDATE drivers SET status = $1, last_ride_id = $2, last_lat = $3, last_lng = $4 WHERE id = $5`
	return r.exec(ctx, query, domain.DriverStatusAvailable, lastRideID, lat, lng, id)
}

func (r *DriverRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
