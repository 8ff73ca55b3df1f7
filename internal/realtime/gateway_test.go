package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

type fakeResolver map[string]domain.Identity

func (f fakeResolver) Resolve(token string) (domain.Identity, error) {
	id, ok := f[token]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return id, nil
}

type fakeRides struct {
	mu        sync.Mutex
	acceptErr error
	accepted  []string
}

func (f *fakeRides) Accept(_ context.Context, rideID, driverID string) (*domain.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	f.accepted = append(f.accepted, rideID+":"+driverID)
	return &domain.Ride{ID: rideID, DriverID: driverID, Status: domain.RideStatusAccepted}, nil
}

func (f *fakeRides) CancelAfterAccept(_ context.Context, rideID, driverID string) (*service.WithdrawResult, error) {
	return &service.WithdrawResult{Ride: &domain.Ride{ID: rideID}}, nil
}

type fakeLocations struct {
	got chan service.UpdateLocationRequest
}

func (f *fakeLocations) UpdateLocation(_ context.Context, req service.UpdateLocationRequest) error {
	f.got <- req
	return nil
}

type gatewayFixture struct {
	server    *httptest.Server
	hub       *Hub
	rides     *fakeRides
	locations *fakeLocations
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &gatewayFixture{
		hub:       NewHub(zap.NewNop()),
		rides:     &fakeRides{},
		locations: &fakeLocations{got: make(chan service.UpdateLocationRequest, 1)},
	}
	resolver := fakeResolver{
		"driver-token":   {UserID: "d1", Role: domain.RoleDriver},
		"customer-token": {UserID: "c1", Role: domain.RoleCustomer},
	}
	gw := NewGateway(f.hub, f.rides, f.locations, resolver, zap.NewNop())

	router := gin.New()
	router.GET("/v1/ws", gw.Handle)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *gatewayFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(Message{Type: event, Payload: body}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func waitConnected(t *testing.T, hub *Hub, role domain.Role, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !hub.Connected(role, userID) {
		if time.Now().After(deadline) {
			t.Fatalf("%s %s never registered", role, userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	f := newGatewayFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestGateway_EmitReachesClient(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "customer-token")
	waitConnected(t, f.hub, domain.RoleCustomer, "c1")

	if !f.hub.Emit(domain.RoleCustomer, "c1", service.EventRideAccepted, map[string]string{"rideId": "r1"}) {
		t.Fatal("expected delivery")
	}

	msg := receive(t, conn)
	if msg.Type != service.EventRideAccepted {
		t.Errorf("expected %s, got %s", service.EventRideAccepted, msg.Type)
	}
}

func TestGateway_UpdateLocation(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "driver-token")

	send(t, conn, InUpdateLocation, map[string]any{"lat": 0.0, "lng": 0.05, "vehicleClass": "sedan"})

	select {
	case req := <-f.locations.got:
		if req.DriverID != "d1" || req.Lat != 0 || req.Lng != 0.05 || req.VehicleClass != "sedan" {
			t.Errorf("unexpected request %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("location update not forwarded")
	}
}

func TestGateway_UpdateLocationValidation(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "driver-token")

	send(t, conn, InUpdateLocation, map[string]any{"lat": 95.0, "lng": 0.0})

	msg := receive(t, conn)
	if msg.Type != service.EventError {
		t.Errorf("expected error event, got %s", msg.Type)
	}
}

func TestGateway_AcceptConflictReportsFailure(t *testing.T) {
	f := newGatewayFixture(t)
	f.rides.acceptErr = service.ErrRideAlreadyTaken
	conn := f.dial(t, "driver-token")

	send(t, conn, InDriverAccept, RideCommandPayload{RideID: "r1"})

	msg := receive(t, conn)
	if msg.Type != service.EventRideAcceptFailed {
		t.Fatalf("expected %s, got %s", service.EventRideAcceptFailed, msg.Type)
	}
	var payload service.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.RideID != "r1" {
		t.Errorf("expected ride r1, got %s", payload.RideID)
	}
}

func TestGateway_CustomerCannotAccept(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "customer-token")

	send(t, conn, InDriverAccept, RideCommandPayload{RideID: "r1"})

	msg := receive(t, conn)
	if msg.Type != service.EventError {
		t.Errorf("expected error event, got %s", msg.Type)
	}
	if len(f.rides.accepted) != 0 {
		t.Error("customer accept must not reach the dispatcher")
	}
}

func TestGateway_NewConnectionReplacesOld(t *testing.T) {
	f := newGatewayFixture(t)
	first := f.dial(t, "driver-token")
	waitConnected(t, f.hub, domain.RoleDriver, "d1")
	second := f.dial(t, "driver-token")

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("expected first connection to be closed")
	}

	// The second session eventually owns the key.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if f.hub.Emit(domain.RoleDriver, "d1", service.EventRideRequested, nil) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	msg := receive(t, second)
	if msg.Type != service.EventRideRequested {
		t.Errorf("expected %s, got %s", service.EventRideRequested, msg.Type)
	}
}
