package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
)

const (
	driverLocationKey   = "drivers:locations"
	availableDriversKey = "drivers:available"
	driverMetaPrefix    = "drivers:meta:"

	vehicleClassField = "vehicle_class"
)

// markIdleScript adds ARGV[1] to the available set unless the driver has an
// active ride binding.
var markIdleScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
redis.call('SADD', KEYS[1], ARGV[1])
return 1
`)

// DriverLocation represents a driver's position as returned by a radius query.
type DriverLocation struct {
	DriverID     string
	Lat          float64
	Lng          float64
	DistanceKm   float64
	VehicleClass string
}

// LocationStore is the geo index of live driver positions. Positions are
// last-write-wins; the vehicle class tag is taken from the driver as reported.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation upserts a driver's position and vehicle class tag.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64, vehicleClass string) error {
	if err := domain.ValidateCoordinates(lat, lng); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
			Name:      driverID,
			Longitude: lng,
			Latitude:  lat,
		})
		if vehicleClass != "" {
			pipe.HSet(ctx, driverMetaPrefix+driverID, vehicleClassField, vehicleClass)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}

// FindNearbyDrivers returns drivers within radiusKm of the point, nearest first.
// Each call runs a fresh query.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error) {
	if err := domain.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", domain.ErrInvalidArgument)
	}

	results, err := s.client.GeoRadius(ctx, driverLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	// Fetch class tags in one round trip.
	pipe := s.client.Pipeline()
	classes := make([]*redis.StringCmd, len(results))
	for i, r := range results {
		classes[i] = pipe.HGet(ctx, driverMetaPrefix+r.Name, vehicleClassField)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load vehicle classes: %w", err)
	}

	locations := make([]DriverLocation, 0, len(results))
	for i, r := range results {
		locations = append(locations, DriverLocation{
			DriverID:     r.Name,
			Lat:          r.Latitude,
			Lng:          r.Longitude,
			DistanceKm:   r.Dist,
			VehicleClass: classes[i].Val(),
		})
	}

	return locations, nil
}

// RemoveLocation drops the driver from the geo index and the available set.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, driverLocationKey, driverID)
		pipe.Del(ctx, driverMetaPrefix+driverID)
		pipe.SRem(ctx, availableDriversKey, driverID)
		return nil
	})
	return err
}

// SetAvailable adds or removes the driver from the available set.
func (s *LocationStore) SetAvailable(ctx context.Context, driverID string, available bool) error {
	if available {
		return s.client.SAdd(ctx, availableDriversKey, driverID).Err()
	}
	return s.client.SRem(ctx, availableDriversKey, driverID).Err()
}

// MarkAvailableIfIdle adds the driver to the available set only while it has
// no active ride binding. It reports whether the driver was added.
func (s *LocationStore) MarkAvailableIfIdle(ctx context.Context, driverID string) (bool, error) {
	added, err := markIdleScript.Run(ctx, s.client,
		[]string{availableDriversKey, activeRidePrefix + driverID}, driverID).Int()
	if err != nil {
		return false, fmt.Errorf("mark available: %w", err)
	}
	return added == 1, nil
}

// FilterAvailable returns the subset of driverIDs in the available set, preserving order.
func (s *LocationStore) FilterAvailable(ctx context.Context, driverIDs []string) ([]string, error) {
	if len(driverIDs) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(driverIDs))
	for i, id := range driverIDs {
		cmds[i] = pipe.SIsMember(ctx, availableDriversKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}

	available := make([]string, 0, len(driverIDs))
	for i, cmd := range cmds {
		if cmd.Val() {
			available = append(available, driverIDs[i])
		}
	}
	return available, nil
}
