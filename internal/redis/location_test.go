package redis

import (
	"context"
	"errors"
	"testing"

	"ridedispatch/internal/domain"
)

func TestLocationStore_FindNearbyDrivers_NearestFirstWithClass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewLocationStore(client)

	// Pickup at (12.9716, 77.5946). Roughly 1 km, 2 km and 50 km away.
	mustUpdate(t, store, "driver-far", 13.4, 77.6, "sedan")
	mustUpdate(t, store, "driver-2km", 12.99, 77.5946, "suv")
	mustUpdate(t, store, "driver-1km", 12.98, 77.5946, "sedan")

	got, err := store.FindNearbyDrivers(ctx, 12.9716, 77.5946, 5)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(got))
	}
	if got[0].DriverID != "driver-1km" || got[1].DriverID != "driver-2km" {
		t.Errorf("unexpected order: %s, %s", got[0].DriverID, got[1].DriverID)
	}
	if got[0].VehicleClass != "sedan" || got[1].VehicleClass != "suv" {
		t.Errorf("unexpected classes: %s, %s", got[0].VehicleClass, got[1].VehicleClass)
	}
	if got[0].DistanceKm <= 0 || got[0].DistanceKm >= got[1].DistanceKm {
		t.Errorf("unexpected distances: %v, %v", got[0].DistanceKm, got[1].DistanceKm)
	}
}

func TestLocationStore_UpdateLocation_LastWriteWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewLocationStore(client)

	mustUpdate(t, store, "driver-1", 12.98, 77.59, "sedan")
	mustUpdate(t, store, "driver-1", 40.0, -74.0, "suv")

	got, err := store.FindNearbyDrivers(ctx, 12.98, 77.59, 5)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected old position to be overwritten, got %d results", len(got))
	}

	got, err = store.FindNearbyDrivers(ctx, 40.0, -74.0, 1)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if len(got) != 1 || got[0].VehicleClass != "suv" {
		t.Fatalf("expected driver-1 as suv at new position, got %+v", got)
	}
}

func TestLocationStore_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)
	store := NewLocationStore(client)

	got, err := store.FindNearbyDrivers(context.Background(), 0, 0, 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestLocationStore_InvalidCoordinates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewLocationStore(client)

	if _, err := store.FindNearbyDrivers(ctx, 91, 0, 5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for query, got %v", err)
	}
	if err := store.UpdateLocation(ctx, "driver-1", 0, 181, "sedan"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for update, got %v", err)
	}

	// Latitudes past the geo index limit are rejected before Redis sees them.
	if err := store.UpdateLocation(ctx, "driver-1", 86, 0, "sedan"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for polar update, got %v", err)
	}
	if _, err := store.FindNearbyDrivers(ctx, -86, 0, 5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for polar query, got %v", err)
	}
}

func TestLocationStore_Availability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewLocationStore(client)

	for _, id := range []string{"d1", "d2", "d3"} {
		if err := store.SetAvailable(ctx, id, true); err != nil {
			t.Fatalf("set available: %v", err)
		}
	}
	if err := store.SetAvailable(ctx, "d2", false); err != nil {
		t.Fatalf("set unavailable: %v", err)
	}

	got, err := store.FilterAvailable(ctx, []string{"d3", "d2", "d1", "d4"})
	if err != nil {
		t.Fatalf("filter available: %v", err)
	}
	if len(got) != 2 || got[0] != "d3" || got[1] != "d1" {
		t.Errorf("expected [d3 d1], got %v", got)
	}

	mustUpdate(t, store, "d1", 1, 1, "sedan")
	if err := store.RemoveLocation(ctx, "d1"); err != nil {
		t.Fatalf("remove location: %v", err)
	}
	got, _ = store.FilterAvailable(ctx, []string{"d1"})
	if len(got) != 0 {
		t.Errorf("expected removed driver to be unavailable")
	}
}

func TestLocationStore_MarkAvailableIfIdle_SkipsDriverOnRide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewLocationStore(client)
	cache := NewCacheStore(client)

	if err := cache.SetActiveRide(ctx, "d1", ActiveRide{RideID: "r1", CustomerID: "c1"}); err != nil {
		t.Fatalf("set active ride: %v", err)
	}

	added, err := store.MarkAvailableIfIdle(ctx, "d1")
	if err != nil {
		t.Fatalf("mark available: %v", err)
	}
	if added {
		t.Error("driver with an active ride should not become available")
	}
	if got, _ := store.FilterAvailable(ctx, []string{"d1"}); len(got) != 0 {
		t.Errorf("expected d1 outside the pool, got %v", got)
	}

	if err := cache.ClearActiveRide(ctx, "d1", "r1"); err != nil {
		t.Fatalf("clear active ride: %v", err)
	}
	added, err = store.MarkAvailableIfIdle(ctx, "d1")
	if err != nil {
		t.Fatalf("mark available: %v", err)
	}
	if !added {
		t.Error("idle driver should become available")
	}
	if got, _ := store.FilterAvailable(ctx, []string{"d1"}); len(got) != 1 {
		t.Errorf("expected d1 in the pool, got %v", got)
	}
}

func mustUpdate(t *testing.T, store *LocationStore, id string, lat, lng float64, class string) {
	t.Helper()
	if err := store.UpdateLocation(context.Background(), id, lat, lng, class); err != nil {
		t.Fatalf("update location %s: %v", id, err)
	}
}
