package service

import (
	"context"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/redis"
)

const defaultSearchRadiusKm = 5.0

// MatchingService selects the drivers a new ride is offered to.
type MatchingService struct {
	locationStore redis.LocationStoreInterface
	radiusKm      float64
}

// NewMatchingService creates a new MatchingService. A non-positive radius
// falls back to 5 km.
func NewMatchingService(locationStore redis.LocationStoreInterface, radiusKm float64) *MatchingService {
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}
	return &MatchingService{locationStore: locationStore, radiusKm: radiusKm}
}

// FindCandidates returns available drivers of the vehicle class within the
// search radius of pickup, nearest first.
func (s *MatchingService) FindCandidates(ctx context.Context, pickup domain.Location, vehicleClass string) ([]string, error) {
	nearby, err := s.locationStore.FindNearbyDrivers(ctx, pickup.Lat, pickup.Lng, s.radiusKm)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(nearby))
	for _, loc := range nearby {
		if loc.VehicleClass != vehicleClass {
			continue
		}
		ids = append(ids, loc.DriverID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Drivers on a ride keep reporting positions but are not in the available set.
	return s.locationStore.FilterAvailable(ctx, ids)
}
