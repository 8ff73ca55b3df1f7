package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveRideTTL bounds how long a driver's ride binding survives without a refresh.
const ActiveRideTTL = 12 * time.Hour

const activeRidePrefix = "cache:driver:active_ride:"

// clearActiveRideScript removes the binding only if it still points at ARGV[1].
var clearActiveRideScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'ride_id') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// ActiveRide binds a driver to the ride they are serving.
type ActiveRide struct {
	RideID     string
	CustomerID string
}

// CacheStore caches the driver to active ride binding used to relay locations.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// SetActiveRide binds driverID to a ride.
func (s *CacheStore) SetActiveRide(ctx context.Context, driverID string, ride ActiveRide) error {
	key := activeRidePrefix + driverID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "ride_id", ride.RideID, "customer_id", ride.CustomerID)
		pipe.Expire(ctx, key, ActiveRideTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set active ride: %w", err)
	}
	return nil
}

// GetActiveRide returns the driver's binding, or nil if the driver is not on a ride.
func (s *CacheStore) GetActiveRide(ctx context.Context, driverID string) (*ActiveRide, error) {
	values, err := s.client.HGetAll(ctx, activeRidePrefix+driverID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if values["ride_id"] == "" {
		return nil, nil // Cache miss
	}

	return &ActiveRide{
		RideID:     values["ride_id"],
		CustomerID: values["customer_id"],
	}, nil
}

// ClearActiveRide removes the binding if it still refers to rideID.
func (s *CacheStore) ClearActiveRide(ctx context.Context, driverID, rideID string) error {
	return clearActiveRideScript.Run(ctx, s.client, []string{activeRidePrefix + driverID}, rideID).Err()
}
