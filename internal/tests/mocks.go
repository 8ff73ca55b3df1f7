package tests

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/events"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// MockStore is an in-memory repository.Store. WithTx is serialized and rolls
// every map back when fn fails.
type MockStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	rides     map[string]*domain.Ride
	drivers   map[string]*domain.Driver
	customers map[string]*domain.Customer
	history   map[string][]string

	// Error injection
	AssignError error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		rides:     make(map[string]*domain.Ride),
		drivers:   make(map[string]*domain.Driver),
		customers: make(map[string]*domain.Customer),
		history:   make(map[string][]string),
	}
}

func (m *MockStore) Rides() repository.RideRepository         { return mockRides{m} }
func (m *MockStore) Drivers() repository.DriverRepository     { return mockDrivers{m} }
func (m *MockStore) Customers() repository.CustomerRepository { return mockCustomers{m} }

func (m *MockStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	rides     map[string]domain.Ride
	drivers   map[string]domain.Driver
	customers map[string]domain.Customer
	history   map[string][]string
}

func (m *MockStore) snapshot() storeSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := storeSnapshot{
		rides:     make(map[string]domain.Ride, len(m.rides)),
		drivers:   make(map[string]domain.Driver, len(m.drivers)),
		customers: make(map[string]domain.Customer, len(m.customers)),
		history:   make(map[string][]string, len(m.history)),
	}
	for id, r := range m.rides {
		s.rides[id] = *r
	}
	for id, d := range m.drivers {
		s.drivers[id] = *d
	}
	for id, c := range m.customers {
		s.customers[id] = *c
	}
	for id, h := range m.history {
		s.history[id] = slices.Clone(h)
	}
	return s
}

func (m *MockStore) restore(s storeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rides = make(map[string]*domain.Ride, len(s.rides))
	for id, r := range s.rides {
		r := r
		m.rides[id] = &r
	}
	m.drivers = make(map[string]*domain.Driver, len(s.drivers))
	for id, d := range s.drivers {
		d := d
		m.drivers[id] = &d
	}
	m.customers = make(map[string]*domain.Customer, len(s.customers))
	for id, c := range s.customers {
		c := c
		m.customers[id] = &c
	}
	m.history = s.history
}

// AddDriver seeds a driver.
func (m *MockStore) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *driver
	m.drivers[driver.ID] = &d
}

// AddCustomer seeds a customer.
func (m *MockStore) AddCustomer(customer *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *customer
	m.customers[customer.ID] = &c
}

// Ride returns a copy of the stored ride for assertions.
func (m *MockStore) Ride(id string) domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rides[id]; ok {
		return *r
	}
	return domain.Ride{}
}

// Driver returns a copy of the stored driver for assertions.
func (m *MockStore) Driver(id string) domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.drivers[id]; ok {
		return *d
	}
	return domain.Driver{}
}

// History returns the customer's finished rides for assertions.
func (m *MockStore) History(customerID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.history[customerID])
}

type mockRides struct{ m *MockStore }

func (r mockRides) Create(ctx context.Context, ride *domain.Ride) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.rides[ride.ID]; ok {
		return repository.ErrAlreadyExists
	}
	stored := *ride
	r.m.rides[ride.ID] = &stored
	return nil
}

func (r mockRides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	ride, ok := r.m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (r mockRides) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var result []*domain.Ride
	for _, ride := range r.m.rides {
		if ride.CustomerID == customerID {
			copy := *ride
			result = append(result, &copy)
		}
	}
	slices.SortFunc(result, func(a, b *domain.Ride) int { return b.RequestedAt.Compare(a.RequestedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r mockRides) GetActiveByDriver(ctx context.Context, driverID string) (*domain.Ride, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, ride := range r.m.rides {
		if ride.DriverID == driverID && !ride.Status.IsTerminal() {
			copy := *ride
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r mockRides) Assign(ctx context.Context, id, driverID string, at time.Time) (*domain.Ride, error) {
	if r.m.AssignError != nil {
		return nil, r.m.AssignError
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ride, ok := r.m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusRequested {
		return nil, repository.ErrStatusMismatch
	}
	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	ride.AcceptedAt = at
	copy := *ride
	return &copy, nil
}

func (r mockRides) Transition(ctx context.Context, id string, from []domain.RideStatus, to domain.RideStatus, at time.Time) (*domain.Ride, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ride, ok := r.m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !slices.Contains(from, ride.Status) {
		return nil, repository.ErrStatusMismatch
	}
	ride.Status = to
	switch to {
	case domain.RideStatusDriverArrived:
		ride.ArrivedAt = at
	case domain.RideStatusStarted:
		ride.StartedAt = at
	case domain.RideStatusCompleted:
		ride.CompletedAt = at
	case domain.RideStatusCancelledByCustomer, domain.RideStatusCancelledByDriver:
		ride.CancelledAt = at
	}
	copy := *ride
	return &copy, nil
}

func (r mockRides) Reopen(ctx context.Context, id, driverID string) (*domain.Ride, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ride, ok := r.m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	switch ride.Status {
	case domain.RideStatusAccepted, domain.RideStatusDriverArrived, domain.RideStatusWaiting:
	default:
		return nil, repository.ErrStatusMismatch
	}
	if ride.DriverID != driverID {
		return nil, repository.ErrStatusMismatch
	}
	ride.DriverID = ""
	ride.Status = domain.RideStatusRequested
	ride.AcceptedAt = time.Time{}
	ride.ArrivedAt = time.Time{}
	copy := *ride
	return &copy, nil
}

type mockDrivers struct{ m *MockStore }

func (d mockDrivers) Create(ctx context.Context, driver *domain.Driver) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if _, ok := d.m.drivers[driver.ID]; ok {
		return repository.ErrAlreadyExists
	}
	stored := *driver
	d.m.drivers[driver.ID] = &stored
	return nil
}

func (d mockDrivers) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	driver, ok := d.m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (d mockDrivers) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	driver, ok := d.m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

func (d mockDrivers) Release(ctx context.Context, id, lastRideID string, lat, lng float64) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	driver, ok := d.m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = domain.DriverStatusAvailable
	driver.LastRideID = lastRideID
	driver.LastLat, driver.LastLng = lat, lng
	return nil
}

type mockCustomers struct{ m *MockStore }

func (c mockCustomers) Create(ctx context.Context, customer *domain.Customer) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.customers[customer.ID]; ok {
		return repository.ErrAlreadyExists
	}
	stored := *customer
	c.m.customers[customer.ID] = &stored
	return nil
}

func (c mockCustomers) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	customer, ok := c.m.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *customer
	return &copy, nil
}

func (c mockCustomers) AppendRideHistory(ctx context.Context, customerID, rideID string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if slices.Contains(c.m.history[customerID], rideID) {
		return nil
	}
	c.m.history[customerID] = append(c.m.history[customerID], rideID)
	return nil
}

func (c mockCustomers) RideHistory(ctx context.Context, customerID string) ([]string, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	return slices.Clone(c.m.history[customerID]), nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// Emitted is one recorded notification.
type Emitted struct {
	Role    domain.Role
	UserID  string
	Event   string
	Payload any
}

// MockNotifier records every event. Users listed in Offline are treated as
// having no session.
type MockNotifier struct {
	mu      sync.Mutex
	emitted []Emitted
	Offline map[string]bool
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Offline: make(map[string]bool)}
}

func (n *MockNotifier) Emit(role domain.Role, userID, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Offline[userID] {
		return false
	}
	n.emitted = append(n.emitted, Emitted{Role: role, UserID: userID, Event: event, Payload: payload})
	return true
}

// Events returns the event names sent to userID, in order.
func (n *MockNotifier) Events(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var names []string
	for _, e := range n.emitted {
		if e.UserID == userID {
			names = append(names, e.Event)
		}
	}
	return names
}

// Recipients returns the users that received event, in order.
func (n *MockNotifier) Recipients(event string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, e := range n.emitted {
		if e.Event == event {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}

// Reset forgets everything recorded so far.
func (n *MockNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emitted = nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published ride events.
type MockPublisher struct {
	mu       sync.Mutex
	Events   []events.RideEvent
	Err      error
	IsClosed bool
}

func (p *MockPublisher) Publish(ctx context.Context, event events.RideEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}

func (p *MockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IsClosed = true
	return nil
}

// Statuses returns the status of every published event, in order.
func (p *MockPublisher) Statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	statuses := make([]string, len(p.Events))
	for i, e := range p.Events {
		statuses[i] = e.Status
	}
	return statuses
}

// ──────────────────────────────────────────────
// HARNESS
// ──────────────────────────────────────────────

// Harness wires the services against an in-memory store and an in-process Redis.
type Harness struct {
	Store       *MockStore
	Redis       *goredis.Client
	Miniredis   *miniredis.Miniredis
	Locations   *redis.LocationStore
	Assignments *redis.DispatchStore
	ActiveRides *redis.CacheStore
	Notifier    *MockNotifier
	Publisher   *MockPublisher

	Dispatcher *service.Dispatcher
	Drivers    *service.DriverService
	Rides      *service.RideService
}

func newHarness(t *testing.T) *Harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &Harness{
		Store:       NewMockStore(),
		Redis:       client,
		Miniredis:   mr,
		Locations:   redis.NewLocationStore(client),
		Assignments: redis.NewDispatchStore(client, 2*time.Minute, 12*time.Hour),
		ActiveRides: redis.NewCacheStore(client),
		Notifier:    NewMockNotifier(),
		Publisher:   &MockPublisher{},
	}

	logger := zap.NewNop()
	notifications := service.NewNotificationService(h.Notifier, logger)
	h.Dispatcher = service.NewDispatcher(service.DispatcherDeps{
		Store:         h.Store,
		Locations:     h.Locations,
		Assignments:   h.Assignments,
		Locks:         redis.NewLockStore(client),
		ActiveRides:   h.ActiveRides,
		Matching:      service.NewMatchingService(h.Locations, 5),
		Notifications: notifications,
		Publisher:     h.Publisher,
		Logger:        logger,
	})
	h.Drivers = service.NewDriverService(h.Locations, h.ActiveRides, h.Store, notifications, logger)
	h.Rides = service.NewRideService(h.Store, h.Assignments)
	return h
}

// addCustomer seeds a customer.
func (h *Harness) addCustomer(id string) {
	h.Store.AddCustomer(&domain.Customer{ID: id, Name: "Customer " + id, CreatedAt: time.Now()})
}

// addOnlineDriver seeds an available driver positioned at lat/lng.
func (h *Harness) addOnlineDriver(t *testing.T, id, class string, lat, lng float64) {
	t.Helper()
	h.Store.AddDriver(&domain.Driver{ID: id, Name: "Driver " + id, VehicleClass: class, Status: domain.DriverStatusAvailable})
	err := h.Drivers.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		DriverID:     id,
		Lat:          lat,
		Lng:          lng,
		VehicleClass: class,
	})
	if err != nil {
		t.Fatalf("update location for %s: %v", id, err)
	}
}

// requestRide requests a ride from (0,0) to (0,0.1).
func (h *Harness) requestRide(t *testing.T, customerID, class string, passengers int) *service.RequestResult {
	t.Helper()
	result, err := h.Dispatcher.Request(context.Background(), service.RideRequest{
		CustomerID:   customerID,
		Pickup:       &domain.Location{Lat: 0, Lng: 0},
		Dropoff:      &domain.Location{Lat: 0, Lng: 0.1},
		VehicleClass: class,
		Passengers:   passengers,
	})
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return result
}

// isKind reports whether err is classified as kind.
func isKind(err, kind error) bool {
	return err != nil && errors.Is(err, kind)
}
