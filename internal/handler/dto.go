package handler

import (
	"time"

	"ridedispatch/internal/domain"
)

// LocationBody is a coordinate pair in a request. Missing coordinates are nil.
type LocationBody struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address,omitempty"`
}

func (b *LocationBody) toDomain() *domain.Location {
	if b == nil || b.Lat == nil || b.Lng == nil {
		return nil
	}
	return &domain.Location{Lat: *b.Lat, Lng: *b.Lng, Address: b.Address}
}

// LocationResponse is a coordinate pair in a response.
type LocationResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// RideResponse is the HTTP view of a ride.
type RideResponse struct {
	ID            string           `json:"id"`
	CustomerID    string           `json:"customer_id"`
	DriverID      string           `json:"driver_id,omitempty"`
	Status        string           `json:"status"`
	Pickup        LocationResponse `json:"pickup"`
	Dropoff       LocationResponse `json:"dropoff"`
	VehicleClass  string           `json:"vehicle_class"`
	Passengers    int              `json:"passengers"`
	Fare          int64            `json:"fare"`
	QuotedFare    int64            `json:"quoted_fare,omitempty"`
	Currency      string           `json:"currency"`
	DistanceKm    float64          `json:"distance_km"`
	DurationMin   float64          `json:"duration_min,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	RequestedAt   time.Time        `json:"requested_at"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
	ArrivedAt     *time.Time       `json:"arrived_at,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:            r.ID,
		CustomerID:    r.CustomerID,
		DriverID:      r.DriverID,
		Status:        string(r.Status),
		Pickup:        LocationResponse{Lat: r.Pickup.Lat, Lng: r.Pickup.Lng, Address: r.Pickup.Address},
		Dropoff:       LocationResponse{Lat: r.Dropoff.Lat, Lng: r.Dropoff.Lng, Address: r.Dropoff.Address},
		VehicleClass:  r.VehicleClass,
		Passengers:    r.Passengers,
		Fare:          r.Fare,
		QuotedFare:    r.QuotedFare,
		Currency:      r.Currency,
		DistanceKm:    r.DistanceKm,
		DurationMin:   r.DurationMin,
		PaymentMethod: string(r.PaymentMethod),
		RequestedAt:   r.RequestedAt,
		AcceptedAt:    optionalTime(r.AcceptedAt),
		ArrivedAt:     optionalTime(r.ArrivedAt),
		StartedAt:     optionalTime(r.StartedAt),
		CompletedAt:   optionalTime(r.CompletedAt),
		CancelledAt:   optionalTime(r.CancelledAt),
	}
}

func toRideResponses(rides []*domain.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r))
	}
	return out
}
