package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/fare"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

// DriverService handles driver presence: position reports and going on or
// off shift.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	activeRides   redis.ActiveRideCacheInterface
	store         repository.Store
	notifications *NotificationService
	logger        *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	activeRides redis.ActiveRideCacheInterface,
	store repository.Store,
	notifications *NotificationService,
	logger *zap.Logger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		activeRides:   activeRides,
		store:         store,
		notifications: notifications,
		logger:        logger,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID     string
	Lat          float64
	Lng          float64
	VehicleClass string
}

// UpdateLocation records the driver's position. A driver without an active
// ride becomes available for matching; a driver on a ride has the position
// relayed to that ride's customer.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if err := domain.ValidateCoordinates(req.Lat, req.Lng); err != nil {
		return ErrInvalidLocation
	}
	if req.VehicleClass != "" {
		if _, err := fare.Lookup(req.VehicleClass); err != nil {
			return err
		}
	}

	if err := s.locationStore.UpdateLocation(ctx, req.DriverID, req.Lat, req.Lng, req.VehicleClass); err != nil {
		return err
	}

	active, err := s.activeRide(ctx, req.DriverID)
	if err != nil {
		return err
	}

	if active == nil {
		// A binding written after the lookup above keeps the driver out.
		_, err := s.locationStore.MarkAvailableIfIdle(ctx, req.DriverID)
		return err
	}

	s.notifications.DriverLocation(active.CustomerID, DriverLocationPayload{
		RideID:   active.RideID,
		DriverID: req.DriverID,
		Lat:      req.Lat,
		Lng:      req.Lng,
		At:       timeNow(),
	})
	return nil
}

// activeRide returns the driver's ride binding. On a cache miss the ride
// store is consulted and the binding rewritten.
func (s *DriverService) activeRide(ctx context.Context, driverID string) (*redis.ActiveRide, error) {
	active, err := s.activeRides.GetActiveRide(ctx, driverID)
	if err != nil || active != nil {
		return active, err
	}

	ride, err := s.store.Rides().GetActiveByDriver(ctx, driverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	active = &redis.ActiveRide{RideID: ride.ID, CustomerID: ride.CustomerID}
	if err := s.activeRides.SetActiveRide(ctx, driverID, *active); err != nil {
		s.logger.Warn("failed to restore active ride", zap.String("driver_id", driverID), zap.Error(err))
	}
	s.logger.Info("active ride restored from store", zap.String("driver_id", driverID), zap.String("ride_id", ride.ID))
	return active, nil
}

// GoOnline marks the driver available and adds it to the matching pool.
func (s *DriverService) GoOnline(ctx context.Context, driverID string) (*domain.Driver, error) {
	driver, err := s.loadIdleDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Drivers().UpdateStatus(ctx, driverID, domain.DriverStatusAvailable); err != nil {
		return nil, err
	}
	if err := s.locationStore.SetAvailable(ctx, driverID, true); err != nil {
		return nil, err
	}

	driver.Status = domain.DriverStatusAvailable
	s.logger.Info("driver online", zap.String("driver_id", driverID))
	return driver, nil
}

// GoOffline takes the driver out of matching and drops its last position.
func (s *DriverService) GoOffline(ctx context.Context, driverID string) (*domain.Driver, error) {
	driver, err := s.loadIdleDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Drivers().UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return nil, err
	}
	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return nil, err
	}

	driver.Status = domain.DriverStatusOffline
	s.logger.Info("driver offline", zap.String("driver_id", driverID))
	return driver, nil
}

func (s *DriverService) loadIdleDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	driver, err := s.store.Drivers().GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status == domain.DriverStatusOnRide {
		return nil, ErrDriverOnRide
	}
	return driver, nil
}
