package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested           RideStatus = "requested"
	RideStatusAccepted            RideStatus = "accepted"
	RideStatusDriverArrived       RideStatus = "driver_arrived"
	RideStatusWaiting             RideStatus = "waiting"
	RideStatusStarted             RideStatus = "ride_started"
	RideStatusCompleted           RideStatus = "completed"
	RideStatusCancelledByCustomer RideStatus = "cancelled_by_customer"
	RideStatusCancelledByDriver   RideStatus = "cancelled_by_driver"
)

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelledByCustomer, RideStatusCancelledByDriver:
		return true
	}
	return false
}

// NonTerminalRideStatuses lists every status a ride can be cancelled from.
var NonTerminalRideStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusAccepted,
	RideStatusDriverArrived,
	RideStatusWaiting,
	RideStatusStarted,
}

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Ride represents one transportation request.
type Ride struct {
	ID            string
	CustomerID    string
	DriverID      string // empty until a driver claims the ride
	Pickup        Location
	Dropoff       Location
	VehicleClass  string
	Passengers    int
	Fare          int64  // authoritative, from the fare calculator
	QuotedFare    int64  // client amount converted to minor units
	Amount        string // client amount as submitted
	Currency      string
	DistanceKm    float64
	DurationMin   float64
	PaymentMethod PaymentMethod
	Status        RideStatus
	RequestedAt   time.Time
	AcceptedAt    time.Time
	ArrivedAt     time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	CancelledAt   time.Time
}

// IsParticipant reports whether userID is the ride's customer or bound driver.
func (r *Ride) IsParticipant(userID string) bool {
	return userID != "" && (userID == r.CustomerID || userID == r.DriverID)
}
