package realtime

import (
	"sync"

	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/metrics"
)

// Hub maps (role, user) to the user's single live session. A new connection
// replaces and closes the previous one.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register binds the session to its identity.
func (h *Hub) Register(s *Session) {
	key := s.identity.Key()

	h.mu.Lock()
	previous := h.sessions[key]
	h.sessions[key] = s
	h.mu.Unlock()

	if previous != nil {
		previous.Close()
		h.logger.Info("session replaced", zap.String("session", key))
		return
	}
	metrics.ActiveSessions.WithLabelValues(string(s.identity.Role)).Inc()
	h.logger.Info("session registered", zap.String("session", key))
}

// Unregister removes the session if it is still the current one for its identity.
func (h *Hub) Unregister(s *Session) {
	key := s.identity.Key()

	h.mu.Lock()
	current, ok := h.sessions[key]
	removed := ok && current == s
	if removed {
		delete(h.sessions, key)
	}
	h.mu.Unlock()

	s.Close()
	if removed {
		metrics.ActiveSessions.WithLabelValues(string(s.identity.Role)).Dec()
		h.logger.Info("session unregistered", zap.String("session", key))
	}
}

// Emit queues an event for the user's session. It never blocks and returns
// false if the user is not connected or cannot keep up.
func (h *Hub) Emit(role domain.Role, userID, event string, payload any) bool {
	h.mu.RLock()
	s := h.sessions[domain.Identity{UserID: userID, Role: role}.Key()]
	h.mu.RUnlock()
	if s == nil {
		return false
	}

	frame, err := encode(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return false
	}
	return s.enqueue(frame)
}

// Connected reports whether the user has a live session.
func (h *Hub) Connected(role domain.Role, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[domain.Identity{UserID: userID, Role: role}.Key()]
	return ok
}

// CloseAll disconnects every session, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.ActiveSessions.WithLabelValues(string(s.identity.Role)).Dec()
	}
}
