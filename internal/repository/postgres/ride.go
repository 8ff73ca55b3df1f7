package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

const rideColumns = `id, customer_id, driver_id,
	pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	vehicle_class, passengers, fare, quoted_fare, amount, currency, distance_km, duration_min,
	payment_method, status, requested_at, accepted_at, arrived_at, started_at, completed_at, cancelled_at`

// statusTimestampColumn maps a target status to the timestamp it stamps.
var statusTimestampColumn = map[domain.RideStatus]string{
	domain.RideStatusAccepted:            "accepted_at",
	domain.RideStatusDriverArrived:       "arrived_at",
	domain.RideStatusStarted:             "started_at",
	domain.RideStatusCompleted:           "completed_at",
	domain.RideStatusCancelledByCustomer: "cancelled_at",
	domain.RideStatusCancelledByDriver:   "cancelled_at",
}

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, customer_id, pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
			vehicle_class, passengers, fare, quoted_fare, amount, currency, distance_km, duration_min, payment_method, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.CustomerID,
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		nullString(ride.Pickup.Address),
		ride.Dropoff.Lat,
		ride.Dropoff.Lng,
		nullString(ride.Dropoff.Address),
		ride.VehicleClass,
		ride.Passengers,
		ride.Fare,
		ride.QuotedFare,
		nullString(ride.Amount),
		ride.Currency,
		ride.DistanceKm,
		ride.DurationMin,
		ride.PaymentMethod,
		ride.Status,
		ride.RequestedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListByCustomer retrieves a customer's rides, newest first.
func (r *RideRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + rideColumns + ` FROM rides WHERE customer_id = $1 ORDER BY requested_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// GetActiveByDriver retrieves the non-terminal ride bound to a driver.
func (r *RideRepository) GetActiveByDriver(ctx context.Context, driverID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 AND status = ANY($2) ORDER BY accepted_at DESC LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, driverID, statusArray(domain.NonTerminalRideStatuses)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// Assign binds driverID to a requested ride and moves it to accepted.
func (r *RideRepository) Assign(ctx context.Context, id, driverID string, at time.Time) (*domain.Ride, error) {
	query := `
		UPDATE rides SET status = $1, driver_id = $2, accepted_at = $3
		WHERE id = $4 AND status = $5 AND driver_id IS NULL
		RETURNING ` + rideColumns

	ride, err := scanRide(r.q.QueryRowContext(ctx, query,
		domain.RideStatusAccepted, driverID, at, id, domain.RideStatusRequested))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrMismatch(ctx, id)
		}
		return nil, err
	}
	return ride, nil
}

// Transition moves the ride to status to if it is currently in one of from.
func (r *RideRepository) Transition(ctx context.Context, id string, from []domain.RideStatus, to domain.RideStatus, at time.Time) (*domain.Ride, error) {
	args := []any{to, id, statusArray(from)}
	set := "status = $1"
	if column, ok := statusTimestampColumn[to]; ok {
		set += fmt.Sprintf(", %s = $4", column)
		args = append(args, at)
	}

	query := `UPDATE rides SET ` + set + ` WHERE id = $2 AND status = ANY($3) RETURNING ` + rideColumns

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrMismatch(ctx, id)
		}
		return nil, err
	}
	return ride, nil
}

// Reopen unbinds driverID from a ride that has not started and returns it to requested.
func (r *RideRepository) Reopen(ctx context.Context, id, driverID string) (*domain.Ride, error) {
	query := `
		UPDATE rides SET status = $1, driver_id = NULL, accepted_at = NULL, arrived_at = NULL
		WHERE id = $2 AND driver_id = $3 AND status = ANY($4)
		RETURNING ` + rideColumns

	preStart := []domain.RideStatus{domain.RideStatusAccepted, domain.RideStatusDriverArrived, domain.RideStatusWaiting}

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, domain.RideStatusRequested, id, driverID, statusArray(preStart)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrMismatch(ctx, id)
		}
		return nil, err
	}
	return ride, nil
}

// missOrMismatch tells a missing ride apart from a failed status guard.
func (r *RideRepository) missOrMismatch(ctx context.Context, id string) error {
	var status string
	err := r.q.QueryRowContext(ctx, `SELECT status FROM rides WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: ride is %s", repository.ErrStatusMismatch, status)
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, pickupAddress, dropoffAddress, amount sql.NullString
	var acceptedAt, arrivedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.CustomerID,
		&driverID,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&pickupAddress,
		&ride.Dropoff.Lat,
		&ride.Dropoff.Lng,
		&dropoffAddress,
		&ride.VehicleClass,
		&ride.Passengers,
		&ride.Fare,
		&ride.QuotedFare,
		&amount,
		&ride.Currency,
		&ride.DistanceKm,
		&ride.DurationMin,
		&ride.PaymentMethod,
		&ride.Status,
		&ride.RequestedAt,
		&acceptedAt,
		&arrivedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.Pickup.Address = pickupAddress.String
	ride.Dropoff.Address = dropoffAddress.String
	ride.Amount = amount.String
	ride.AcceptedAt = acceptedAt.Time
	ride.ArrivedAt = arrivedAt.Time
	ride.StartedAt = startedAt.Time
	ride.CompletedAt = completedAt.Time
	ride.CancelledAt = cancelledAt.Time

	return &ride, nil
}

func statusArray(statuses []domain.RideStatus) any {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
