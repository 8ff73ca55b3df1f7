package service

import (
	"context"
	"errors"
	"time"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

const defaultRideListLimit = 50

var timeNow = time.Now

// RideService answers read-only questions about rides.
type RideService struct {
	store       repository.Store
	assignments redis.DispatchStoreInterface
}

// NewRideService creates a new RideService.
func NewRideService(store repository.Store, assignments redis.DispatchStoreInterface) *RideService {
	return &RideService{store: store, assignments: assignments}
}

// GetRide returns a ride visible to actor, which must be its customer or driver.
func (s *RideService) GetRide(ctx context.Context, rideID string, actor domain.Identity) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	ride, err := s.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(actor.UserID) {
		return nil, ErrNotRideParticipant
	}
	return ride, nil
}

// DispatchState returns the live dispatch record of a ride to its customer.
// A ride whose record expired or was removed yields a record with no status.
func (s *RideService) DispatchState(ctx context.Context, rideID string, actor domain.Identity) (*domain.DispatchRecord, error) {
	ride, err := s.GetRide(ctx, rideID, actor)
	if err != nil {
		return nil, err
	}
	if actor.UserID != ride.CustomerID {
		return nil, ErrNotRideParticipant
	}

	record, err := s.assignments.Get(ctx, rideID)
	if errors.Is(err, redis.ErrDispatchNotFound) {
		return &domain.DispatchRecord{RideID: rideID, PassengerID: ride.CustomerID}, nil
	}
	return record, err
}

// CustomerRides is a customer's ride list plus the IDs of finished rides.
type CustomerRides struct {
	Rides   []*domain.Ride
	History []string
}

// ListCustomerRides returns the customer's most recent rides and finished ride history.
func (s *RideService) ListCustomerRides(ctx context.Context, customerID string, limit int) (*CustomerRides, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomerID
	}
	if limit <= 0 || limit > defaultRideListLimit {
		limit = defaultRideListLimit
	}

	rides, err := s.store.Rides().ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, err
	}
	history, err := s.store.Customers().RideHistory(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &CustomerRides{Rides: rides, History: history}, nil
}
