// Package fare prices rides from the vehicle-class catalog.
package fare

import (
	"fmt"

	"ridedispatch/internal/domain"
)

// ErrUnknownVehicleClass is returned for a class missing from the catalog.
var ErrUnknownVehicleClass = fmt.Errorf("%w: unknown vehicle class", domain.ErrInvalidArgument)

// VehicleClass describes one entry of the catalog. BaseFare and RatePerKm are
// denominated in minor units of the ride currency.
type VehicleClass struct {
	Name      string
	Seats     int // 0 means no seat limit
	BaseFare  float64
	RatePerKm float64
}

// Fits reports whether the class can carry the given number of passengers.
func (c VehicleClass) Fits(passengers int) bool {
	return c.Seats == 0 || passengers <= c.Seats
}

var catalog = map[string]VehicleClass{
	"coupe":     {Name: "coupe", Seats: 2, BaseFare: 80, RatePerKm: 25},
	"micro":     {Name: "micro", Seats: 3, BaseFare: 50, RatePerKm: 15},
	"hatchback": {Name: "hatchback", Seats: 4, BaseFare: 60, RatePerKm: 18},
	"sedan":     {Name: "sedan", Seats: 5, BaseFare: 70, RatePerKm: 20},
	"suv":       {Name: "suv", Seats: 6, BaseFare: 90, RatePerKm: 25},
	"minivan":   {Name: "minivan", Seats: 8, BaseFare: 120, RatePerKm: 30},
	"van":       {Name: "van", Seats: 12, BaseFare: 160, RatePerKm: 35},
	"bus":       {Name: "bus", Seats: 0, BaseFare: 250, RatePerKm: 45},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (VehicleClass, error) {
	class, ok := catalog[name]
	if !ok {
		return VehicleClass{}, fmt.Errorf("%w: %q", ErrUnknownVehicleClass, name)
	}
	return class, nil
}
