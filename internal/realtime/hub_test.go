package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"

	"ridedispatch/internal/domain"
)

func testSession(role domain.Role, userID string) *Session {
	return newSession(domain.Identity{UserID: userID, Role: role}, nil, zap.NewNop())
}

func readFrame(t *testing.T, s *Session) Message {
	t.Helper()
	select {
	case frame := <-s.send:
		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return msg
	default:
		t.Fatal("expected a queued frame")
		return Message{}
	}
}

func TestHub_EmitDeliversToRegisteredSession(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	s := testSession(domain.RoleDriver, "d1")
	hub.Register(s)

	if !hub.Emit(domain.RoleDriver, "d1", "rideRequested", map[string]string{"rideId": "r1"}) {
		t.Fatal("expected delivery")
	}

	msg := readFrame(t, s)
	if msg.Type != "rideRequested" {
		t.Errorf("expected rideRequested, got %s", msg.Type)
	}
	var payload map[string]string
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["rideId"] != "r1" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestHub_EmitWithoutSessionIsNoop(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	hub.Register(testSession(domain.RoleCustomer, "u1"))

	if hub.Emit(domain.RoleDriver, "u1", "rideRequested", nil) {
		t.Error("role must be part of the session key")
	}
	if hub.Emit(domain.RoleCustomer, "nobody", "rideAccepted", nil) {
		t.Error("expected no delivery to absent user")
	}
}

func TestHub_LastConnectionWins(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	first := testSession(domain.RoleDriver, "d1")
	second := testSession(domain.RoleDriver, "d1")

	hub.Register(first)
	hub.Register(second)

	select {
	case <-first.done:
	default:
		t.Fatal("replaced session should be closed")
	}

	hub.Emit(domain.RoleDriver, "d1", "ping", nil)
	if len(first.send) != 0 {
		t.Error("replaced session must not receive events")
	}
	if len(second.send) != 1 {
		t.Error("current session should receive the event")
	}

	// The old connection's teardown must not evict the new one.
	hub.Unregister(first)
	if !hub.Connected(domain.RoleDriver, "d1") {
		t.Error("current session was evicted by stale unregister")
	}

	hub.Unregister(second)
	if hub.Connected(domain.RoleDriver, "d1") {
		t.Error("expected session to be removed")
	}
}

func TestHub_FullBufferDrops(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	s := testSession(domain.RoleCustomer, "c1")
	hub.Register(s)

	for i := 0; i < sendBuffer; i++ {
		if !hub.Emit(domain.RoleCustomer, "c1", "driverLocationUpdate", i) {
			t.Fatalf("emit %d should fit in the buffer", i)
		}
	}
	if hub.Emit(domain.RoleCustomer, "c1", "driverLocationUpdate", "overflow") {
		t.Error("expected drop when buffer is full")
	}
}

func TestHub_ConcurrentEmitAndRegister(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Register(testSession(domain.RoleDriver, "d1"))
		}()
		go func() {
			defer wg.Done()
			hub.Emit(domain.RoleDriver, "d1", "rideRequested", nil)
		}()
	}
	wg.Wait()

	if !hub.Connected(domain.RoleDriver, "d1") {
		t.Error("expected one live session")
	}
	hub.CloseAll()
	if hub.Connected(domain.RoleDriver, "d1") {
		t.Error("expected no sessions after CloseAll")
	}
}
