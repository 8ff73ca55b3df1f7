package fare

import "math"

// Quote is the result of pricing a ride.
type Quote struct {
	Class      VehicleClass
	DistanceKm float64
	Amount     int64
}

// Calculator prices rides from the catalog.
type Calculator struct{}

// NewCalculator creates a new Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate returns baseFare + distance*ratePerKm rounded to the nearest integer,
// where distance is the pickup to dropoff haversine distance rounded to two decimals.
func (c *Calculator) Calculate(pickup, dropoff *Point, vehicleClass string) (Quote, error) {
	class, err := Lookup(vehicleClass)
	if err != nil {
		return Quote{}, err
	}

	distance, err := DistanceKm(pickup, dropoff)
	if err != nil {
		return Quote{}, err
	}

	amount := math.Round(class.BaseFare + distance*class.RatePerKm)

	return Quote{
		Class:      class,
		DistanceKm: distance,
		Amount:     int64(amount),
	}, nil
}
