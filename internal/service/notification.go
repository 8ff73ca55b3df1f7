package service

import (
	"time"

	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/metrics"
)

// Outbound realtime event names.
const (
	EventRideRequested         = "rideRequested"
	EventRideAccepted          = "rideAccepted"
	EventRideAcceptFailed      = "rideAcceptFailed"
	EventRideNoLongerAvailable = "rideNoLongerAvailable"
	EventDriverArrived         = "driverArrived"
	EventDriverWaiting         = "driverWaiting"
	EventRideStarted           = "rideStarted"
	EventRideCompleted         = "rideCompleted"
	EventRideCancelled         = "rideCancelled"
	EventNoDriversAvailable    = "noDriversAvailable"
	EventDriverLocationUpdate  = "driverLocationUpdate"
	EventCollectItemsReminder  = "collectItemsReminder"
	EventError                 = "error"
)

const collectItemsMessage = "Please remember to collect all your belongings before leaving the vehicle."

// Notifier delivers a named event to a connected session. It returns false
// when the recipient has no session or its buffer is full; delivery is
// at-most-once and never blocks.
type Notifier interface {
	Emit(role domain.Role, userID, event string, payload any) bool
}

// LocationPayload is a coordinate pair on the wire.
type LocationPayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// RidePayload is the ride view sent to both parties.
type RidePayload struct {
	RideID        string          `json:"rideId"`
	CustomerID    string          `json:"customerId"`
	DriverID      string          `json:"driverId,omitempty"`
	Status        string          `json:"status"`
	Pickup        LocationPayload `json:"pickup"`
	Dropoff       LocationPayload `json:"dropoff"`
	VehicleClass  string          `json:"vehicleClass"`
	Passengers    int             `json:"passengers"`
	Fare          int64           `json:"fare"`
	Currency      string          `json:"currency"`
	DistanceKm    float64         `json:"distanceKm"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
}

// NewRidePayload builds the wire view of a ride.
func NewRidePayload(r *domain.Ride) RidePayload {
	return RidePayload{
		RideID:        r.ID,
		CustomerID:    r.CustomerID,
		DriverID:      r.DriverID,
		Status:        string(r.Status),
		Pickup:        LocationPayload{Lat: r.Pickup.Lat, Lng: r.Pickup.Lng, Address: r.Pickup.Address},
		Dropoff:       LocationPayload{Lat: r.Dropoff.Lat, Lng: r.Dropoff.Lng, Address: r.Dropoff.Address},
		VehicleClass:  r.VehicleClass,
		Passengers:    r.Passengers,
		Fare:          r.Fare,
		Currency:      r.Currency,
		DistanceKm:    r.DistanceKm,
		PaymentMethod: string(r.PaymentMethod),
	}
}

// RideAcceptedPayload adds the driver's public profile to the ride.
type RideAcceptedPayload struct {
	RidePayload
	DriverName  string `json:"driverName"`
	DriverPhone string `json:"driverPhone,omitempty"`
}

// RideRefPayload references a ride with an optional human-readable message.
type RideRefPayload struct {
	RideID  string `json:"rideId"`
	Message string `json:"message,omitempty"`
}

// RideCancelledPayload tells a party who cancelled.
type RideCancelledPayload struct {
	RideID      string `json:"rideId"`
	Status      string `json:"status"`
	CancelledBy string `json:"cancelledBy"`
}

// DriverLocationPayload is relayed to the customer of an active ride.
type DriverLocationPayload struct {
	RideID   string    `json:"rideId"`
	DriverID string    `json:"driverId"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	At       time.Time `json:"at"`
}

// ErrorPayload is the body of failure events.
type ErrorPayload struct {
	RideID  string `json:"rideId,omitempty"`
	Message string `json:"message"`
}

// NotificationService turns ride changes into realtime events.
type NotificationService struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{notifier: notifier, logger: logger}
}

// RideRequested offers the ride to each driver and returns how many
// offers reached a live session.
func (s *NotificationService) RideRequested(ride *domain.Ride, driverIDs []string) int {
	payload := NewRidePayload(ride)
	delivered := 0
	for _, id := range driverIDs {
		if s.send(domain.RoleDriver, id, EventRideRequested, payload) {
			delivered++
		}
	}
	metrics.OffersSent.Add(float64(len(driverIDs)))
	return delivered
}

// NoDriversAvailable tells the customer nobody could be offered the ride.
func (s *NotificationService) NoDriversAvailable(ride *domain.Ride) {
	metrics.NoDriversAvailable.Inc()
	s.send(domain.RoleCustomer, ride.CustomerID, EventNoDriversAvailable, RideRefPayload{
		RideID:  ride.ID,
		Message: "No drivers are available near your pickup right now.",
	})
}

// RideAccepted tells the customer (and the winning driver) who took the ride.
func (s *NotificationService) RideAccepted(ride *domain.Ride, driver *domain.Driver) {
	payload := RideAcceptedPayload{
		RidePayload: NewRidePayload(ride),
		DriverName:  driver.Name,
		DriverPhone: driver.Phone,
	}
	s.send(domain.RoleCustomer, ride.CustomerID, EventRideAccepted, payload)
	s.send(domain.RoleDriver, driver.ID, EventRideAccepted, payload)
}

// RideAcceptFailed tells a driver its accept did not win.
func (s *NotificationService) RideAcceptFailed(driverID, rideID string, cause error) {
	s.send(domain.RoleDriver, driverID, EventRideAcceptFailed, ErrorPayload{RideID: rideID, Message: cause.Error()})
}

// RideNoLongerAvailable retracts an outstanding offer.
func (s *NotificationService) RideNoLongerAvailable(rideID string, driverIDs []string) {
	payload := RideRefPayload{RideID: rideID}
	for _, id := range driverIDs {
		s.send(domain.RoleDriver, id, EventRideNoLongerAvailable, payload)
	}
}

func (s *NotificationService) DriverArrived(ride *domain.Ride) {
	s.send(domain.RoleCustomer, ride.CustomerID, EventDriverArrived, NewRidePayload(ride))
}

func (s *NotificationService) DriverWaiting(ride *domain.Ride) {
	s.send(domain.RoleCustomer, ride.CustomerID, EventDriverWaiting, NewRidePayload(ride))
}

func (s *NotificationService) RideStarted(ride *domain.Ride) {
	payload := NewRidePayload(ride)
	s.send(domain.RoleCustomer, ride.CustomerID, EventRideStarted, payload)
	s.send(domain.RoleDriver, ride.DriverID, EventRideStarted, payload)
}

func (s *NotificationService) RideCompleted(ride *domain.Ride) {
	payload := NewRidePayload(ride)
	s.send(domain.RoleCustomer, ride.CustomerID, EventRideCompleted, payload)
	s.send(domain.RoleDriver, ride.DriverID, EventRideCompleted, payload)
}

// RideCancelled notifies the customer and, if one was bound, the driver.
func (s *NotificationService) RideCancelled(ride *domain.Ride, cancelledBy domain.Role) {
	payload := RideCancelledPayload{RideID: ride.ID, Status: string(ride.Status), CancelledBy: string(cancelledBy)}
	s.send(domain.RoleCustomer, ride.CustomerID, EventRideCancelled, payload)
	if ride.DriverID != "" {
		s.send(domain.RoleDriver, ride.DriverID, EventRideCancelled, payload)
	}
}

// CollectItemsReminder asks the customer to check for belongings.
func (s *NotificationService) CollectItemsReminder(ride *domain.Ride) {
	s.send(domain.RoleCustomer, ride.CustomerID, EventCollectItemsReminder, RideRefPayload{
		RideID:  ride.ID,
		Message: collectItemsMessage,
	})
}

// DriverLocation relays a driver position to the ride's customer.
func (s *NotificationService) DriverLocation(customerID string, p DriverLocationPayload) {
	s.send(domain.RoleCustomer, customerID, EventDriverLocationUpdate, p)
}

func (s *NotificationService) send(role domain.Role, userID, event string, payload any) bool {
	if userID == "" {
		return false
	}
	if s.notifier.Emit(role, userID, event, payload) {
		return true
	}
	metrics.NotificationsDropped.WithLabelValues(event).Inc()
	s.logger.Debug("notification not delivered",
		zap.String("event", event),
		zap.String("role", string(role)),
		zap.String("user_id", userID),
	)
	return false
}
