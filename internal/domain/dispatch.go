package domain

// DispatchStatus is the coordination status of a ride in the assignment store.
type DispatchStatus string

const (
	DispatchStatusPending   DispatchStatus = "pending"
	DispatchStatusAssigned  DispatchStatus = "assigned"
	DispatchStatusCancelled DispatchStatus = "cancelled"
)

// DispatchRecord is the transient per-ride coordination state.
type DispatchRecord struct {
	RideID          string
	Status          DispatchStatus
	PassengerID     string
	NotifiedDrivers []string // in offer order
	RejectedDrivers []string
	AssignedDriver  string
}

// IsRejected reports whether driverID declined or withdrew from the ride.
func (r *DispatchRecord) IsRejected(driverID string) bool {
	for _, id := range r.RejectedDrivers {
		if id == driverID {
			return true
		}
	}
	return false
}

// RemainingPool returns notified drivers that were not rejected and are not in exclude.
// Offer order is preserved.
func (r *DispatchRecord) RemainingPool(exclude ...string) []string {
	skip := make(map[string]struct{}, len(r.RejectedDrivers)+len(exclude))
	for _, id := range r.RejectedDrivers {
		skip[id] = struct{}{}
	}
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	pool := make([]string, 0, len(r.NotifiedDrivers))
	for _, id := range r.NotifiedDrivers {
		if _, ok := skip[id]; ok {
			continue
		}
		pool = append(pool, id)
	}
	return pool
}
