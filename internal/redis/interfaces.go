package redis

import (
	"context"
	"time"

	"ridedispatch/internal/domain"
)

// LocationStoreInterface defines the geo index of driver positions and availability.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64, vehicleClass string) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
	SetAvailable(ctx context.Context, driverID string, available bool) error
	MarkAvailableIfIdle(ctx context.Context, driverID string) (bool, error)
	FilterAvailable(ctx context.Context, driverIDs []string) ([]string, error)
}

// DispatchStoreInterface defines the shared per-ride coordination primitives.
type DispatchStoreInterface interface {
	SetPending(ctx context.Context, rideID, passengerID string) error
	SaveNotifiedDrivers(ctx context.Context, rideID string, driverIDs []string) error
	ClaimAssignment(ctx context.Context, rideID, driverID string) (bool, error)
	AddRejectedDriver(ctx context.Context, rideID, driverID string) error
	ClearAssignment(ctx context.Context, rideID string) error
	Cancel(ctx context.Context, rideID string) error
	Delete(ctx context.Context, rideID string) error
	Get(ctx context.Context, rideID string) (*domain.DispatchRecord, error)
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (string, bool, error)
	ReleaseDriverLock(ctx context.Context, driverID, token string) error
}

// ActiveRideCacheInterface defines the driver to active ride binding.
type ActiveRideCacheInterface interface {
	SetActiveRide(ctx context.Context, driverID string, ride ActiveRide) error
	GetActiveRide(ctx context.Context, driverID string) (*ActiveRide, error)
	ClearActiveRide(ctx context.Context, driverID, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface   = (*LocationStore)(nil)
	_ DispatchStoreInterface   = (*DispatchStore)(nil)
	_ LockStoreInterface       = (*LockStore)(nil)
	_ ActiveRideCacheInterface = (*CacheStore)(nil)
)
