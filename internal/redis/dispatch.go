package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
)

// ErrDispatchNotFound is returned when a ride has no live dispatch record.
var ErrDispatchNotFound = fmt.Errorf("dispatch record %w", domain.ErrNotFound)

// Default lifetimes of a dispatch record.
const (
	DefaultOfferTTL  = 2 * time.Minute
	DefaultActiveTTL = 12 * time.Hour
	tombstoneTTL     = time.Minute
)

// claimScript assigns the ride only while it is pending and unassigned.
// KEYS: status, assigned, notified, rejected, passenger. ARGV: driver id, ttl seconds.
var claimScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= 'pending' then
	return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
redis.call('SET', KEYS[2], ARGV[1], 'EX', ARGV[2])
redis.call('SET', KEYS[1], 'assigned', 'EX', ARGV[2])
redis.call('EXPIRE', KEYS[3], ARGV[2])
redis.call('EXPIRE', KEYS[4], ARGV[2])
redis.call('EXPIRE', KEYS[5], ARGV[2])
return 1
`)

// reopenScript drops the assignee and returns an assigned ride to pending.
// KEYS: status, assigned, notified, rejected, passenger. ARGV: ttl seconds.
var reopenScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= 'assigned' then
	return 0
end
redis.call('DEL', KEYS[2])
redis.call('SET', KEYS[1], 'pending', 'EX', ARGV[1])
redis.call('EXPIRE', KEYS[3], ARGV[1])
redis.call('EXPIRE', KEYS[4], ARGV[1])
redis.call('EXPIRE', KEYS[5], ARGV[1])
return 1
`)

// DispatchStore keeps per-ride dispatch state in Redis so that every server
// instance sees the same record. All keys of one ride share a hash slot.
type DispatchStore struct {
	client    *redis.Client
	offerTTL  time.Duration
	activeTTL time.Duration
}

// NewDispatchStore creates a new DispatchStore. Non-positive TTLs fall back to defaults.
func NewDispatchStore(client *redis.Client, offerTTL, activeTTL time.Duration) *DispatchStore {
	if offerTTL <= 0 {
		offerTTL = DefaultOfferTTL
	}
	if activeTTL <= 0 {
		activeTTL = DefaultActiveTTL
	}
	return &DispatchStore{client: client, offerTTL: offerTTL, activeTTL: activeTTL}
}

type dispatchKeys struct {
	status    string
	assigned  string
	notified  string
	rejected  string
	passenger string
}

func keysFor(rideID string) dispatchKeys {
	prefix := "dispatch:{" + rideID + "}:"
	return dispatchKeys{
		status:    prefix + "status",
		assigned:  prefix + "assigned",
		notified:  prefix + "notified",
		rejected:  prefix + "rejected",
		passenger: prefix + "passenger",
	}
}

func (k dispatchKeys) all() []string {
	return []string{k.status, k.assigned, k.notified, k.rejected, k.passenger}
}

// SetPending initializes or overwrites the dispatch record with pending status.
func (s *DispatchStore) SetPending(ctx context.Context, rideID, passengerID string) error {
	k := keysFor(rideID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k.assigned, k.notified, k.rejected)
		pipe.Set(ctx, k.status, string(domain.DispatchStatusPending), s.offerTTL)
		pipe.Set(ctx, k.passenger, passengerID, s.offerTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set pending: %w", err)
	}
	return nil
}

// SaveNotifiedDrivers replaces the ordered candidate set of the ride.
func (s *DispatchStore) SaveNotifiedDrivers(ctx context.Context, rideID string, driverIDs []string) error {
	k := keysFor(rideID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k.notified)
		if len(driverIDs) > 0 {
			values := make([]any, len(driverIDs))
			for i, id := range driverIDs {
				values[i] = id
			}
			pipe.RPush(ctx, k.notified, values...)
			pipe.Expire(ctx, k.notified, s.offerTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save notified drivers: %w", err)
	}
	return nil
}

// ClaimAssignment atomically assigns driverID to the ride. It returns false when
// the ride is already assigned, cancelled, or its offer window has expired.
func (s *DispatchStore) ClaimAssignment(ctx context.Context, rideID, driverID string) (bool, error) {
	k := keysFor(rideID)
	n, err := claimScript.Run(ctx, s.client, k.all(), driverID, ttlSeconds(s.activeTTL)).Int()
	if err != nil {
		return false, fmt.Errorf("claim assignment: %w", err)
	}
	return n == 1, nil
}

// AddRejectedDriver records that driverID declined or withdrew. Repeated calls are no-ops.
func (s *DispatchStore) AddRejectedDriver(ctx context.Context, rideID, driverID string) error {
	k := keysFor(rideID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, k.rejected, driverID)
		pipe.Expire(ctx, k.rejected, s.activeTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add rejected driver: %w", err)
	}
	return nil
}

// ClearAssignment removes the current assignee and resets the record to pending,
// opening a fresh offer window. Records that are not assigned are left untouched.
func (s *DispatchStore) ClearAssignment(ctx context.Context, rideID string) error {
	k := keysFor(rideID)
	if err := reopenScript.Run(ctx, s.client, k.all(), ttlSeconds(s.offerTTL)).Err(); err != nil {
		return fmt.Errorf("clear assignment: %w", err)
	}
	return nil
}

// Cancel marks the record cancelled and keeps it briefly so late accepts fail cleanly.
func (s *DispatchStore) Cancel(ctx context.Context, rideID string) error {
	k := keysFor(rideID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k.status, string(domain.DispatchStatusCancelled), tombstoneTTL)
		for _, key := range []string{k.assigned, k.notified, k.rejected, k.passenger} {
			pipe.Expire(ctx, key, tombstoneTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel dispatch: %w", err)
	}
	return nil
}

// Delete removes the record of a finished ride.
func (s *DispatchStore) Delete(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, keysFor(rideID).all()...).Err()
}

// Get loads the full dispatch record of a ride.
func (s *DispatchStore) Get(ctx context.Context, rideID string) (*domain.DispatchRecord, error) {
	k := keysFor(rideID)

	pipe := s.client.Pipeline()
	status := pipe.Get(ctx, k.status)
	passenger := pipe.Get(ctx, k.passenger)
	assigned := pipe.Get(ctx, k.assigned)
	notified := pipe.LRange(ctx, k.notified, 0, -1)
	rejected := pipe.SMembers(ctx, k.rejected)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load dispatch record: %w", err)
	}

	if errors.Is(status.Err(), redis.Nil) {
		return nil, ErrDispatchNotFound
	}

	rejectedIDs := rejected.Val()
	sort.Strings(rejectedIDs)

	return &domain.DispatchRecord{
		RideID:          rideID,
		Status:          domain.DispatchStatus(status.Val()),
		PassengerID:     passenger.Val(),
		AssignedDriver:  assigned.Val(),
		NotifiedDrivers: notified.Val(),
		RejectedDrivers: rejectedIDs,
	}, nil
}

func ttlSeconds(d time.Duration) int {
	if s := int(d / time.Second); s > 0 {
		return s
	}
	return 1
}
