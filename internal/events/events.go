// Package events publishes ride status changes to a message broker so that
// downstream consumers (billing, analytics) can follow a ride's lifecycle.
package events

import (
	"context"
	"encoding/json"
	"time"

	"ridedispatch/internal/domain"
)

// RideEvent is the broker message for a ride status change.
type RideEvent struct {
	RideID       string    `json:"ride_id"`
	Status       string    `json:"status"`
	CustomerID   string    `json:"customer_id"`
	DriverID     string    `json:"driver_id,omitempty"`
	VehicleClass string    `json:"vehicle_class"`
	Fare         int64     `json:"fare"`
	Currency     string    `json:"currency"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewRideEvent snapshots a ride into an event.
func NewRideEvent(ride *domain.Ride, reason string, at time.Time) RideEvent {
	return RideEvent{
		RideID:       ride.ID,
		Status:       string(ride.Status),
		CustomerID:   ride.CustomerID,
		DriverID:     ride.DriverID,
		VehicleClass: ride.VehicleClass,
		Fare:         ride.Fare,
		Currency:     ride.Currency,
		Reason:       reason,
		OccurredAt:   at.UTC(),
	}
}

// RoutingKey is the topic routing key, e.g. "ride.status.completed".
func (e RideEvent) RoutingKey() string {
	return "ride.status." + e.Status
}

func (e RideEvent) encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers ride events.
type Publisher interface {
	Publish(ctx context.Context, event RideEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RideEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }
