package tests

import (
	"context"
	"testing"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

func TestRideQueries_ParticipantsOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	rideID := acceptedRide(t, h)

	for _, id := range []domain.Identity{
		{UserID: "c1", Role: domain.RoleCustomer},
		{UserID: "d1", Role: domain.RoleDriver},
	} {
		if _, err := h.Rides.GetRide(ctx, rideID, id); err != nil {
			t.Errorf("%s: unexpected error %v", id.Key(), err)
		}
	}

	_, err := h.Rides.GetRide(ctx, rideID, domain.Identity{UserID: "d2", Role: domain.RoleDriver})
	if !isKind(err, service.ErrNotRideParticipant) {
		t.Errorf("expected ErrNotRideParticipant, got %v", err)
	}
	if _, err := h.Rides.GetRide(ctx, "missing", domain.Identity{UserID: "c1", Role: domain.RoleCustomer}); !isKind(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRideQueries_DispatchState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	rideID := acceptedRide(t, h)

	record, err := h.Rides.DispatchState(ctx, rideID, domain.Identity{UserID: "c1", Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("dispatch state: %v", err)
	}
	if record.Status != domain.DispatchStatusAssigned || record.AssignedDriver != "d1" {
		t.Errorf("expected assigned to d1, got %s/%q", record.Status, record.AssignedDriver)
	}

	_, err = h.Rides.DispatchState(ctx, rideID, domain.Identity{UserID: "d1", Role: domain.RoleDriver})
	if !isKind(err, domain.ErrUnauthorized) {
		t.Errorf("expected drivers to be refused, got %v", err)
	}

	h.Miniredis.FlushAll()
	record, err = h.Rides.DispatchState(ctx, rideID, domain.Identity{UserID: "c1", Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("dispatch state after expiry: %v", err)
	}
	if record.Status != "" || record.RideID != rideID {
		t.Errorf("expected empty record for %s, got %+v", rideID, record)
	}
}

func TestRideQueries_ListCustomerRides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	h.addCustomer("c1")

	first := h.requestRide(t, "c1", "sedan", 1)
	h.requestRide(t, "c1", "suv", 1)
	if _, err := h.Dispatcher.Cancel(ctx, first.Ride.ID, domain.Identity{UserID: "c1", Role: domain.RoleCustomer}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rides, err := h.Rides.ListCustomerRides(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list rides: %v", err)
	}
	if len(rides.Rides) != 2 {
		t.Errorf("expected 2 rides, got %d", len(rides.Rides))
	}
	if len(rides.History) != 1 || rides.History[0] != first.Ride.ID {
		t.Errorf("expected history [%s], got %v", first.Ride.ID, rides.History)
	}

	if _, err := h.Rides.ListCustomerRides(ctx, "", 10); !isKind(err, service.ErrInvalidCustomerID) {
		t.Errorf("expected ErrInvalidCustomerID, got %v", err)
	}
}
