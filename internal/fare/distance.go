package fare

import (
	"fmt"
	"math"

	"ridedispatch/internal/domain"
)

const earthRadiusKm = 6371.0

// ErrIncompleteCoordinates is returned when a pickup or dropoff point is missing.
var ErrIncompleteCoordinates = fmt.Errorf("%w: incomplete coordinates", domain.ErrInvalidArgument)

// Point is a coordinate pair. A nil *Point is treated as incomplete.
type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceKm returns the haversine distance rounded to two decimal places.
func DistanceKm(from, to *Point) (float64, error) {
	if from == nil || to == nil {
		return 0, ErrIncompleteCoordinates
	}
	return roundTo(Haversine(*from, *to), 2), nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
