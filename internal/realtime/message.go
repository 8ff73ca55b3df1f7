package realtime

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	InUpdateLocation          = "updateLocation"
	InDriverAccept            = "driverAccept"
	InDriverCancelAfterAccept = "driverCancelAfterAccept"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func encode(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: event, Payload: body, Timestamp: time.Now().UTC()})
}

// UpdateLocationPayload is sent by drivers on every position fix.
type UpdateLocationPayload struct {
	Lat          *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng          *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	VehicleClass string   `json:"vehicleClass" validate:"omitempty,max=32"`
}

// RideCommandPayload names the ride an accept or withdrawal is for.
type RideCommandPayload struct {
	RideID string `json:"rideId" validate:"required,max=64"`
}
