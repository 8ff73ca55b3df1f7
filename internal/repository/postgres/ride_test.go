package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

var rideColumnNames = []string{
	"id", "customer_id", "driver_id",
	"pickup_lat", "pickup_lng", "pickup_address", "dropoff_lat", "dropoff_lng", "dropoff_address",
	"vehicle_class", "passengers", "fare", "quoted_fare", "amount", "currency", "distance_km", "duration_min",
	"payment_method", "status", "requested_at", "accepted_at", "arrived_at", "started_at", "completed_at", "cancelled_at",
}

func newMockRepo(t *testing.T) (*RideRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return &RideRepository{q: db}, mock
}

func rideRow(status domain.RideStatus, driverID any, acceptedAt, cancelledAt any) *sqlmock.Rows {
	requested := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(rideColumnNames).AddRow(
		"r1", "c1", driverID,
		0.0, 0.0, nil, 0.0, 0.1, nil,
		"sedan", int64(1), int64(292), int64(0), nil, "USD", 11.12, 0.0,
		"card", string(status), requested, acceptedAt, nil, nil, nil, cancelledAt,
	)
}

func TestRideRepository_Assign_GuardsRequestedAndUnbound(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE rides SET status = \$1, driver_id = \$2, accepted_at = \$3\s+WHERE id = \$4 AND status = \$5 AND driver_id IS NULL\s+RETURNING id, customer_id`).
		WithArgs("accepted", "d1", at, "r1", "requested").
		WillReturnRows(rideRow(domain.RideStatusAccepted, "d1", at, nil))

	ride, err := repo.Assign(context.Background(), "r1", "d1", at)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if ride.Status != domain.RideStatusAccepted || ride.DriverID != "d1" || !ride.AcceptedAt.Equal(at) {
		t.Errorf("unexpected ride %+v", ride)
	}
	if ride.Fare != 292 || ride.Pickup.Address != "" {
		t.Errorf("unexpected scanned fields %+v", ride)
	}
}

func TestRideRepository_Assign_LostGuardIsStatusMismatch(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)
	at := time.Now().UTC()

	mock.ExpectQuery(`UPDATE rides SET status = \$1, driver_id = \$2`).
		WithArgs("accepted", "d2", at, "r1", "requested").
		WillReturnRows(sqlmock.NewRows(rideColumnNames))
	mock.ExpectQuery(`SELECT status FROM rides WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("accepted"))

	_, err := repo.Assign(context.Background(), "r1", "d2", at)
	if !errors.Is(err, repository.ErrStatusMismatch) {
		t.Errorf("expected status mismatch, got %v", err)
	}
}

func TestRideRepository_Transition(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)

	t.Run("stamps the target timestamp", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)
		from := []domain.RideStatus{domain.RideStatusRequested, domain.RideStatusAccepted}

		mock.ExpectQuery(`UPDATE rides SET status = \$1, cancelled_at = \$4 WHERE id = \$2 AND status = ANY\(\$3\) RETURNING`).
			WithArgs("cancelled_by_customer", "r1", statusArray(from), at).
			WillReturnRows(rideRow(domain.RideStatusCancelledByCustomer, nil, nil, at))

		ride, err := repo.Transition(context.Background(), "r1", from, domain.RideStatusCancelledByCustomer, at)
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if ride.Status != domain.RideStatusCancelledByCustomer || !ride.CancelledAt.Equal(at) {
			t.Errorf("unexpected ride %+v", ride)
		}
	})

	t.Run("status without timestamp", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)
		from := []domain.RideStatus{domain.RideStatusDriverArrived}

		mock.ExpectQuery(`UPDATE rides SET status = \$1 WHERE id = \$2 AND status = ANY\(\$3\) RETURNING`).
			WithArgs("waiting", "r1", statusArray(from)).
			WillReturnRows(rideRow(domain.RideStatusWaiting, "d1", at, nil))

		if _, err := repo.Transition(context.Background(), "r1", from, domain.RideStatusWaiting, at); err != nil {
			t.Fatalf("transition: %v", err)
		}
	})

	t.Run("missing ride", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)
		from := []domain.RideStatus{domain.RideStatusWaiting}

		mock.ExpectQuery(`UPDATE rides SET status = \$1, started_at = \$4`).
			WithArgs("ride_started", "ghost", statusArray(from), at).
			WillReturnRows(sqlmock.NewRows(rideColumnNames))
		mock.ExpectQuery(`SELECT status FROM rides WHERE id = \$1`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		_, err := repo.Transition(context.Background(), "ghost", from, domain.RideStatusStarted, at)
		if !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestRideRepository_Reopen_OnlyBeforeStartForAssignee(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)
	preStart := []domain.RideStatus{domain.RideStatusAccepted, domain.RideStatusDriverArrived, domain.RideStatusWaiting}

	mock.ExpectQuery(`UPDATE rides SET status = \$1, driver_id = NULL, accepted_at = NULL, arrived_at = NULL\s+WHERE id = \$2 AND driver_id = \$3 AND status = ANY\(\$4\)\s+RETURNING`).
		WithArgs("requested", "r1", "d1", statusArray(preStart)).
		WillReturnRows(sqlmock.NewRows(rideColumnNames))
	mock.ExpectQuery(`SELECT status FROM rides WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ride_started"))

	_, err := repo.Reopen(context.Background(), "r1", "d1")
	if !errors.Is(err, repository.ErrStatusMismatch) {
		t.Errorf("expected status mismatch, got %v", err)
	}
}
