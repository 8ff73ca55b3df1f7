package domain

import "fmt"

// MaxLatitude is the largest absolute latitude the geo index can store.
const MaxLatitude = 85.05112878

// ErrInvalidCoordinates is returned for a latitude/longitude pair outside the valid range.
var ErrInvalidCoordinates = fmt.Errorf("%w: invalid coordinates", ErrInvalidArgument)

// Location is a point on the map with an optional human readable address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// ValidateCoordinates checks that lat is within ±MaxLatitude and lng within [-180, 180].
func ValidateCoordinates(lat, lng float64) error {
	if lat < -MaxLatitude || lat > MaxLatitude || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
