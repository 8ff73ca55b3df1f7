package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/events"
	"ridedispatch/internal/fare"
	"ridedispatch/internal/metrics"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
)

const (
	defaultDriverLockTTL = 10 * time.Second
	defaultCurrency      = "USD"
	publishTimeout       = 2 * time.Second
)

// DispatcherDeps groups the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Store         repository.Store
	Locations     redis.LocationStoreInterface
	Assignments   redis.DispatchStoreInterface
	Locks         redis.LockStoreInterface
	ActiveRides   redis.ActiveRideCacheInterface
	Matching      *MatchingService
	Fares         *fare.Calculator
	Notifications *NotificationService
	Publisher     events.Publisher
	Logger        *zap.Logger
	DriverLockTTL time.Duration
}

// Dispatcher owns the ride lifecycle: offering a ride to nearby drivers,
// resolving concurrent accepts, and every transition after that.
type Dispatcher struct {
	store         repository.Store
	locations     redis.LocationStoreInterface
	assignments   redis.DispatchStoreInterface
	locks         redis.LockStoreInterface
	activeRides   redis.ActiveRideCacheInterface
	matching      *MatchingService
	fares         *fare.Calculator
	notifications *NotificationService
	publisher     events.Publisher
	logger        *zap.Logger
	driverLockTTL time.Duration
	now           func() time.Time
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		store:         deps.Store,
		locations:     deps.Locations,
		assignments:   deps.Assignments,
		locks:         deps.Locks,
		activeRides:   deps.ActiveRides,
		matching:      deps.Matching,
		fares:         deps.Fares,
		notifications: deps.Notifications,
		publisher:     deps.Publisher,
		logger:        deps.Logger,
		driverLockTTL: deps.DriverLockTTL,
		now:           time.Now,
	}
	if d.fares == nil {
		d.fares = fare.NewCalculator()
	}
	if d.publisher == nil {
		d.publisher = events.NopPublisher{}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.driverLockTTL <= 0 {
		d.driverLockTTL = defaultDriverLockTTL
	}
	return d
}

// RideRequest contains the parameters for requesting a ride.
type RideRequest struct {
	CustomerID    string
	Pickup        *domain.Location
	Dropoff       *domain.Location
	VehicleClass  string
	Passengers    int    // 0 means 1
	Amount        string // optional client quote
	Currency      string // defaults to USD
	DurationMin   float64
	PaymentMethod domain.PaymentMethod
}

// RequestResult is the created ride and the drivers it was offered to.
type RequestResult struct {
	Ride            *domain.Ride
	NotifiedDrivers []string
}

// Request creates a ride, prices it and offers it to nearby drivers. A ride
// with no eligible driver is still created; the customer is told no drivers
// are available.
func (d *Dispatcher) Request(ctx context.Context, req RideRequest) (*RequestResult, error) {
	started := d.now()

	if req.CustomerID == "" {
		return nil, ErrInvalidCustomerID
	}
	if req.Pickup == nil || req.Dropoff == nil {
		return nil, fare.ErrIncompleteCoordinates
	}
	if err := domain.ValidateCoordinates(req.Pickup.Lat, req.Pickup.Lng); err != nil {
		return nil, ErrInvalidPickupLocation
	}
	if err := domain.ValidateCoordinates(req.Dropoff.Lat, req.Dropoff.Lng); err != nil {
		return nil, ErrInvalidDropoffLocation
	}

	class, err := fare.Lookup(req.VehicleClass)
	if err != nil {
		return nil, err
	}

	passengers := req.Passengers
	if passengers == 0 {
		passengers = 1
	}
	if passengers < 0 {
		return nil, ErrInvalidPassengerCount
	}
	if !class.Fits(passengers) {
		return nil, fmt.Errorf("%w: %s seats %d", ErrTooManyPassengers, class.Name, class.Seats)
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodCard
	}
	if !isValidPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	var quoted int64
	if req.Amount != "" {
		quoted, err = fare.ToMinorUnits(req.Amount, currency)
		if err != nil {
			return nil, err
		}
	}

	if _, err := d.store.Customers().GetByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	quote, err := d.fares.Calculate(
		&fare.Point{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		&fare.Point{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng},
		class.Name,
	)
	if err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		Pickup:        *req.Pickup,
		Dropoff:       *req.Dropoff,
		VehicleClass:  class.Name,
		Passengers:    passengers,
		Fare:          quote.Amount,
		QuotedFare:    quoted,
		Amount:        req.Amount,
		Currency:      currency,
		DistanceKm:    quote.DistanceKm,
		DurationMin:   req.DurationMin,
		PaymentMethod: paymentMethod,
		Status:        domain.RideStatusRequested,
		RequestedAt:   d.now(),
	}

	if err := d.store.Rides().Create(ctx, ride); err != nil {
		return nil, err
	}
	if err := d.assignments.SetPending(ctx, ride.ID, ride.CustomerID); err != nil {
		return nil, err
	}

	metrics.RidesRequested.WithLabelValues(ride.VehicleClass).Inc()
	log := d.logger.With(zap.String("ride_id", ride.ID), zap.String("customer_id", ride.CustomerID))

	candidates, err := d.matching.FindCandidates(ctx, ride.Pickup, ride.VehicleClass)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		log.Info("no drivers available", zap.String("vehicle_class", ride.VehicleClass))
		d.notifications.NoDriversAvailable(ride)
	} else {
		if err := d.assignments.SaveNotifiedDrivers(ctx, ride.ID, candidates); err != nil {
			return nil, err
		}
		delivered := d.notifications.RideRequested(ride, candidates)
		log.Info("ride offered",
			zap.Int("candidates", len(candidates)),
			zap.Int("delivered", delivered),
			zap.Int64("fare", ride.Fare),
		)
	}

	metrics.DispatchLatency.Observe(d.now().Sub(started).Seconds())
	d.publish(ctx, ride, "")

	return &RequestResult{Ride: ride, NotifiedDrivers: candidates}, nil
}

// Accept binds driverID to the ride. Of any number of concurrent accepts for
// one ride exactly one succeeds; the others get a Conflict error.
func (d *Dispatcher) Accept(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	token, locked, err := d.locks.AcquireDriverLock(ctx, driverID, d.driverLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrDriverBusy
	}
	defer func() {
		if err := d.locks.ReleaseDriverLock(context.WithoutCancel(ctx), driverID, token); err != nil {
			d.logger.Warn("failed to release driver lock", zap.String("driver_id", driverID), zap.Error(err))
		}
	}()

	driver, err := d.store.Drivers().GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status == domain.DriverStatusOnRide {
		return nil, ErrDriverBusy
	}

	ride, err := d.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	switch {
	case ride.Status.IsTerminal():
		return nil, ErrRideFinished
	case ride.Status != domain.RideStatusRequested:
		metrics.ClaimAttempts.WithLabelValues(metrics.ClaimLost).Inc()
		return nil, ErrRideAlreadyTaken
	}

	record, err := d.assignments.Get(ctx, rideID)
	if err != nil {
		if errors.Is(err, redis.ErrDispatchNotFound) {
			return nil, ErrOfferExpired
		}
		return nil, err
	}
	if record.IsRejected(driverID) {
		return nil, ErrOfferWithdrawn
	}

	claimed, err := d.assignments.ClaimAssignment(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.ClaimAttempts.WithLabelValues(metrics.ClaimLost).Inc()
		return nil, ErrRideAlreadyTaken
	}
	metrics.ClaimAttempts.WithLabelValues(metrics.ClaimWon).Inc()

	var assigned *domain.Ride
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		assigned, err = tx.Rides().Assign(ctx, rideID, driverID, d.now())
		if err != nil {
			return err
		}
		return tx.Drivers().UpdateStatus(ctx, driverID, domain.DriverStatusOnRide)
	})
	if err != nil {
		// Give the claim back so another driver can still take the ride.
		if clearErr := d.assignments.ClearAssignment(context.WithoutCancel(ctx), rideID); clearErr != nil {
			d.logger.Error("failed to roll back claim", zap.String("ride_id", rideID), zap.Error(clearErr))
		}
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, ErrRideAlreadyTaken
		}
		return nil, err
	}

	// Bind before leaving the pool so a concurrent location ping cannot re-add the driver.
	if err := d.activeRides.SetActiveRide(ctx, driverID, redis.ActiveRide{RideID: rideID, CustomerID: assigned.CustomerID}); err != nil {
		d.logger.Warn("failed to cache active ride", zap.String("driver_id", driverID), zap.Error(err))
	}
	if err := d.locations.SetAvailable(ctx, driverID, false); err != nil {
		d.logger.Warn("failed to mark driver unavailable", zap.String("driver_id", driverID), zap.Error(err))
	}

	d.notifications.RideAccepted(assigned, driver)
	d.notifications.RideNoLongerAvailable(rideID, record.RemainingPool(driverID))

	d.logger.Info("ride accepted", zap.String("ride_id", rideID), zap.String("driver_id", driverID))
	metrics.RideTransitions.WithLabelValues(string(assigned.Status)).Inc()
	d.publish(ctx, assigned, "")

	return assigned, nil
}

// WithdrawResult describes a ride reopened after its driver withdrew.
type WithdrawResult struct {
	Ride        *domain.Ride
	ReofferedTo []string
}

// CancelAfterAccept lets the assigned driver withdraw before the ride starts.
// The ride returns to requested and is re-offered to the drivers that were
// originally notified, minus everyone who has withdrawn. A driver that is not
// the assignee is only freed locally.
func (d *Dispatcher) CancelAfterAccept(ctx context.Context, rideID, driverID string) (*WithdrawResult, error) {
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

	if ride.DriverID != driverID {
		d.freeDriverLocally(ctx, driverID, rideID)
		return nil, ErrNotAssignedDriver
	}

	switch ride.Status {
	case domain.RideStatusAccepted, domain.RideStatusDriverArrived, domain.RideStatusWaiting:
	case domain.RideStatusStarted:
		return nil, ErrRideAlreadyStarted
	default:
		if ride.Status.IsTerminal() {
			return nil, ErrRideFinished
		}
		return nil, ErrInvalidTransition
	}

	record, err := d.assignments.Get(ctx, rideID)
	recordExpired := errors.Is(err, redis.ErrDispatchNotFound)
	switch {
	case recordExpired:
		record = &domain.DispatchRecord{RideID: rideID, PassengerID: ride.CustomerID}
	case err != nil:
		return nil, err
	}

	var reopened *domain.Ride
	err = d.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		reopened, err = tx.Rides().Reopen(ctx, rideID, driverID)
		if err != nil {
			return err
		}
		return tx.Drivers().UpdateStatus(ctx, driverID, domain.DriverStatusAvailable)
	})
	if err != nil {
		return nil, err
	}

	// The withdrawing driver is rejected before the claim is released so it
	// cannot win the reopened ride back.
	if recordExpired {
		if err := d.assignments.SetPending(ctx, rideID, ride.CustomerID); err != nil {
			return nil, err
		}
	}
	if err := d.assignments.AddRejectedDriver(ctx, rideID, driverID); err != nil {
		return nil, err
	}
	if !recordExpired {
		if err := d.assignments.ClearAssignment(ctx, rideID); err != nil {
			return nil, err
		}
	}
	d.freeDriverLocally(ctx, driverID, rideID)

	record.RejectedDrivers = append(record.RejectedDrivers, driverID)
	pool := record.RemainingPool(driverID)

	if err := d.assignments.SaveNotifiedDrivers(ctx, rideID, pool); err != nil {
		return nil, err
	}

	metrics.Withdrawals.Inc()
	log := d.logger.With(zap.String("ride_id", rideID), zap.String("driver_id", driverID))
	if len(pool) == 0 {
		log.Info("driver withdrew, no drivers left to re-offer")
		d.notifications.NoDriversAvailable(reopened)
	} else {
		d.notifications.RideRequested(reopened, pool)
		log.Info("driver withdrew, ride re-offered", zap.Int("candidates", len(pool)))
	}

	d.publish(ctx, reopened, "driver_withdrew")

	return &WithdrawResult{Ride: reopened, ReofferedTo: pool}, nil
}

// freeDriverLocally returns the driver to the available pool unless its
// cached binding points to a different ride.
func (d *Dispatcher) freeDriverLocally(ctx context.Context, driverID, rideID string) {
	active, err := d.activeRides.GetActiveRide(ctx, driverID)
	if err != nil {
		d.logger.Warn("failed to read active ride", zap.String("driver_id", driverID), zap.Error(err))
		return
	}
	if active != nil && active.RideID != rideID {
		return
	}
	if active != nil {
		if err := d.activeRides.ClearActiveRide(ctx, driverID, rideID); err != nil {
			d.logger.Warn("failed to clear active ride", zap.String("driver_id", driverID), zap.Error(err))
		}
	}
	if err := d.locations.SetAvailable(ctx, driverID, true); err != nil {
		d.logger.Warn("failed to mark driver available", zap.String("driver_id", driverID), zap.Error(err))
	}
}

// publish sends a ride event without failing the caller.
func (d *Dispatcher) publish(ctx context.Context, ride *domain.Ride, reason string) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, events.NewRideEvent(ride, reason, d.now())); err != nil {
		d.logger.Warn("failed to publish ride event",
			zap.String("ride_id", ride.ID),
			zap.String("status", string(ride.Status)),
			zap.Error(err),
		)
	}
}

func isValidPaymentMethod(method domain.PaymentMethod) bool {
	return method == domain.PaymentMethodCard || method == domain.PaymentMethodWallet
}
