package domain

// DriverStatus represents the durable availability of a driver.
type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "available"
	DriverStatusOnRide    DriverStatus = "on_ride"
	DriverStatusOffline   DriverStatus = "offline"
)

// Driver represents a driver in the system.
type Driver struct {
	ID           string
	Name         string
	Phone        string
	VehicleClass string
	Status       DriverStatus
	LastRideID   string
	LastLat      float64
	LastLng      float64
}
