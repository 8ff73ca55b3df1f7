package service

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/metrics"
	"ridedispatch/internal/repository"
)

// Arrive marks the driver at the pickup point.
func (d *Dispatcher) Arrive(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := d.driverTransition(ctx, rideID, driverID,
		[]domain.RideStatus{domain.RideStatusAccepted}, domain.RideStatusDriverArrived)
	if err != nil {
		return nil, err
	}
	d.notifications.DriverArrived(ride)
	return ride, nil
}

// Wait starts the waiting period after arrival while the customer boards.
func (d *Dispatcher) Wait(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := d.driverTransition(ctx, rideID, driverID,
		[]domain.RideStatus{domain.RideStatusDriverArrived}, domain.RideStatusWaiting)
	if err != nil {
		return nil, err
	}
	d.notifications.DriverWaiting(ride)
	return ride, nil
}

// BypassWait ends the waiting period and starts the ride.
func (d *Dispatcher) BypassWait(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := d.driverTransition(ctx, rideID, driverID,
		[]domain.RideStatus{domain.RideStatusWaiting}, domain.RideStatusStarted)
	if err != nil {
		return nil, err
	}
	d.notifications.RideStarted(ride)
	return ride, nil
}

// Start begins the ride straight from arrival.
func (d *Dispatcher) Start(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := d.driverTransition(ctx, rideID, driverID,
		[]domain.RideStatus{domain.RideStatusDriverArrived}, domain.RideStatusStarted)
	if err != nil {
		return nil, err
	}
	d.notifications.RideStarted(ride)
	return ride, nil
}

// Complete finishes a started ride. The customer is reminded to collect
// their belongings first; the driver is then freed at the dropoff point.
func (d *Dispatcher) Complete(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := d.loadDriverRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusStarted {
		return nil, transitionError(ride.Status, domain.RideStatusCompleted)
	}

	d.notifications.CollectItemsReminder(ride)

	var completed *domain.Ride
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		completed, err = tx.Rides().Transition(ctx, rideID,
			[]domain.RideStatus{domain.RideStatusStarted}, domain.RideStatusCompleted, d.now())
		if err != nil {
			return err
		}
		if err := tx.Drivers().Release(ctx, driverID, rideID, ride.Dropoff.Lat, ride.Dropoff.Lng); err != nil {
			return err
		}
		return tx.Customers().AppendRideHistory(ctx, ride.CustomerID, rideID)
	})
	if err != nil {
		return nil, err
	}

	if err := d.locations.UpdateLocation(ctx, driverID, ride.Dropoff.Lat, ride.Dropoff.Lng, ride.VehicleClass); err != nil {
		d.logger.Warn("failed to snap driver to dropoff", zap.String("driver_id", driverID), zap.Error(err))
	}
	d.releaseDriver(ctx, driverID, rideID)
	if err := d.assignments.Delete(ctx, rideID); err != nil {
		d.logger.Warn("failed to delete dispatch record", zap.String("ride_id", rideID), zap.Error(err))
	}

	d.notifications.RideCompleted(completed)
	d.recordTransition(ctx, completed, "")
	return completed, nil
}

// Cancel ends a ride on behalf of its customer or its bound driver. Cancelling
// a completed or cancelled ride fails without side effects.
func (d *Dispatcher) Cancel(ctx context.Context, rideID string, actor domain.Identity) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := d.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status.IsTerminal() {
		return nil, ErrRideFinished
	}

	var target domain.RideStatus
	var by domain.Role
	switch {
	case actor.Role == domain.RoleCustomer && actor.UserID == ride.CustomerID:
		target, by = domain.RideStatusCancelledByCustomer, domain.RoleCustomer
	case actor.Role == domain.RoleDriver && ride.DriverID != "" && actor.UserID == ride.DriverID:
		target, by = domain.RideStatusCancelledByDriver, domain.RoleDriver
	default:
		return nil, ErrNotRideParticipant
	}

	wasStarted := ride.Status == domain.RideStatusStarted

	var cancelled *domain.Ride
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		cancelled, err = tx.Rides().Transition(ctx, rideID, []domain.RideStatus{ride.Status}, target, d.now())
		if err != nil {
			return err
		}
		if ride.DriverID != "" {
			if err := tx.Drivers().UpdateStatus(ctx, ride.DriverID, domain.DriverStatusAvailable); err != nil {
				return err
			}
		}
		return tx.Customers().AppendRideHistory(ctx, ride.CustomerID, rideID)
	})
	if err != nil {
		return nil, err
	}

	// Read the pool before the record is tombstoned.
	var outstanding []string
	if ride.DriverID == "" {
		if record, err := d.assignments.Get(ctx, rideID); err == nil {
			outstanding = record.RemainingPool()
		}
	}
	if err := d.assignments.Cancel(ctx, rideID); err != nil {
		d.logger.Warn("failed to cancel dispatch record", zap.String("ride_id", rideID), zap.Error(err))
	}
	if ride.DriverID != "" {
		d.releaseDriver(ctx, ride.DriverID, rideID)
	}

	if wasStarted {
		d.notifications.CollectItemsReminder(cancelled)
	}
	d.notifications.RideCancelled(cancelled, by)
	d.notifications.RideNoLongerAvailable(rideID, outstanding)

	d.recordTransition(ctx, cancelled, string(by))
	return cancelled, nil
}

// driverTransition moves a ride bound to driverID from one of from to to.
func (d *Dispatcher) driverTransition(ctx context.Context, rideID, driverID string, from []domain.RideStatus, to domain.RideStatus) (*domain.Ride, error) {
	ride, err := d.loadDriverRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, ride.Status) {
		return nil, transitionError(ride.Status, to)
	}

	updated, err := d.store.Rides().Transition(ctx, rideID, from, to, d.now())
	if err != nil {
		return nil, err
	}

	d.recordTransition(ctx, updated, "")
	return updated, nil
}

// loadDriverRide loads the ride and checks driverID is its bound driver.
func (d *Dispatcher) loadDriverRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := d.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status.IsTerminal() {
		return nil, ErrRideFinished
	}
	if ride.DriverID != driverID {
		return nil, ErrNotAssignedDriver
	}
	return ride, nil
}

// releaseDriver returns a driver to the matching pool after its ride ends.
func (d *Dispatcher) releaseDriver(ctx context.Context, driverID, rideID string) {
	if err := d.activeRides.ClearActiveRide(ctx, driverID, rideID); err != nil {
		d.logger.Warn("failed to clear active ride", zap.String("driver_id", driverID), zap.Error(err))
	}
	if err := d.locations.SetAvailable(ctx, driverID, true); err != nil {
		d.logger.Warn("failed to mark driver available", zap.String("driver_id", driverID), zap.Error(err))
	}
}

func (d *Dispatcher) recordTransition(ctx context.Context, ride *domain.Ride, reason string) {
	metrics.RideTransitions.WithLabelValues(string(ride.Status)).Inc()
	d.logger.Info("ride status changed",
		zap.String("ride_id", ride.ID),
		zap.String("status", string(ride.Status)),
	)
	d.publish(ctx, ride, reason)
}

func transitionError(from, to domain.RideStatus) error {
	if from.IsTerminal() {
		return ErrRideFinished
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}
