package service

import (
	"fmt"

	"ridedispatch/internal/domain"
)

var (
	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = fmt.Errorf("%w: invalid customer id", domain.ErrInvalidArgument)

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = fmt.Errorf("%w: invalid driver id", domain.ErrInvalidArgument)

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = fmt.Errorf("%w: invalid ride id", domain.ErrInvalidArgument)

	ErrInvalidPickupLocation  = fmt.Errorf("%w: invalid pickup location", domain.ErrInvalidArgument)
	ErrInvalidDropoffLocation = fmt.Errorf("%w: invalid dropoff location", domain.ErrInvalidArgument)
	ErrInvalidLocation        = fmt.Errorf("%w: invalid location", domain.ErrInvalidArgument)

	// ErrInvalidPassengerCount is returned for a passenger count below one.
	ErrInvalidPassengerCount = fmt.Errorf("%w: passenger count must be at least 1", domain.ErrInvalidArgument)

	// ErrTooManyPassengers is returned when the party does not fit the vehicle class.
	ErrTooManyPassengers = fmt.Errorf("%w: passenger count exceeds vehicle capacity", domain.ErrInvalidArgument)

	// ErrInvalidPaymentMethod is returned when payment method is invalid.
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", domain.ErrInvalidArgument)

	// ErrInvalidTransition is returned when a ride cannot move to the requested status.
	ErrInvalidTransition = fmt.Errorf("%w: transition not allowed from current status", domain.ErrInvalidState)

	// ErrRideFinished is returned for any change to a completed or cancelled ride.
	ErrRideFinished = fmt.Errorf("%w: ride already completed or cancelled", domain.ErrInvalidState)

	// ErrRideAlreadyStarted is returned when a driver withdraws after pickup.
	ErrRideAlreadyStarted = fmt.Errorf("%w: ride already started", domain.ErrInvalidState)

	// ErrDriverOnRide is returned when a driver changes availability mid-ride.
	ErrDriverOnRide = fmt.Errorf("%w: driver is on a ride", domain.ErrInvalidState)

	// ErrRideAlreadyTaken is returned to every driver but the one whose claim won.
	ErrRideAlreadyTaken = fmt.Errorf("%w: ride already taken", domain.ErrConflict)

	// ErrOfferExpired is returned when the ride's dispatch record is gone.
	ErrOfferExpired = fmt.Errorf("%w: ride offer expired", domain.ErrConflict)

	// ErrOfferWithdrawn is returned to a driver that already withdrew from the ride.
	ErrOfferWithdrawn = fmt.Errorf("%w: ride no longer offered to this driver", domain.ErrConflict)

	// ErrDriverBusy is returned when the driver is on a ride or another accept holds its lock.
	ErrDriverBusy = fmt.Errorf("%w: driver busy", domain.ErrConflict)

	// ErrNotRideParticipant is returned when the actor is neither the ride's customer nor its driver.
	ErrNotRideParticipant = fmt.Errorf("%w: not a participant of this ride", domain.ErrUnauthorized)

	// ErrNotAssignedDriver is returned when a driver acts on a ride bound to someone else.
	ErrNotAssignedDriver = fmt.Errorf("%w: driver not assigned to this ride", domain.ErrUnauthorized)
)
