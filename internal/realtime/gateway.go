package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

const commandTimeout = 5 * time.Second

// IdentityResolver turns a bearer token into an identity.
type IdentityResolver interface {
	Resolve(token string) (domain.Identity, error)
}

// RideCommands are the ride operations a driver can issue over the socket.
type RideCommands interface {
	Accept(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	CancelAfterAccept(ctx context.Context, rideID, driverID string) (*service.WithdrawResult, error)
}

// LocationReporter records driver positions.
type LocationReporter interface {
	UpdateLocation(ctx context.Context, req service.UpdateLocationRequest) error
}

// Gateway upgrades authenticated requests to websocket sessions and routes
// inbound driver events.
type Gateway struct {
	hub       *Hub
	rides     RideCommands
	locations LocationReporter
	auth      IdentityResolver
	validate  *validator.Validate
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewGateway creates a new Gateway.
func NewGateway(hub *Hub, rides RideCommands, locations LocationReporter, auth IdentityResolver, logger *zap.Logger) *Gateway {
	return &Gateway{
		hub:       hub,
		rides:     rides,
		locations: locations,
		auth:      auth,
		validate:  validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handle is the gin handler for GET /v1/ws. The token comes from the
// "token" query parameter or the Authorization header.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	identity, err := g.auth.Resolve(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := newSession(identity, conn, g.logger)
	g.hub.Register(session)
	defer g.hub.Unregister(session)

	go session.writePump()
	session.readPump(func(frame []byte) {
		g.handleFrame(session, frame)
	})
}

func (g *Gateway) handleFrame(s *Session, frame []byte) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		g.reply(s, service.EventError, service.ErrorPayload{Message: "malformed message"})
		return
	}

	if s.identity.Role != domain.RoleDriver {
		g.reply(s, service.EventError, service.ErrorPayload{Message: fmt.Sprintf("%s is not allowed for customers", msg.Type)})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	driverID := s.identity.UserID

	switch msg.Type {
	case InUpdateLocation:
		var p UpdateLocationPayload
		if err := g.decode(msg.Payload, &p); err != nil {
			g.reply(s, service.EventError, service.ErrorPayload{Message: err.Error()})
			return
		}
		err := g.locations.UpdateLocation(ctx, service.UpdateLocationRequest{
			DriverID:     driverID,
			Lat:          *p.Lat,
			Lng:          *p.Lng,
			VehicleClass: p.VehicleClass,
		})
		if err != nil {
			g.reply(s, service.EventError, service.ErrorPayload{Message: err.Error()})
		}

	case InDriverAccept:
		var p RideCommandPayload
		if err := g.decode(msg.Payload, &p); err != nil {
			g.reply(s, service.EventRideAcceptFailed, service.ErrorPayload{Message: err.Error()})
			return
		}
		if _, err := g.rides.Accept(ctx, p.RideID, driverID); err != nil {
			event := service.EventError
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidState) {
				event = service.EventRideAcceptFailed
			}
			g.reply(s, event, service.ErrorPayload{RideID: p.RideID, Message: err.Error()})
		}

	case InDriverCancelAfterAccept:
		var p RideCommandPayload
		if err := g.decode(msg.Payload, &p); err != nil {
			g.reply(s, service.EventError, service.ErrorPayload{Message: err.Error()})
			return
		}
		if _, err := g.rides.CancelAfterAccept(ctx, p.RideID, driverID); err != nil {
			g.reply(s, service.EventError, service.ErrorPayload{RideID: p.RideID, Message: err.Error()})
			return
		}
		g.reply(s, service.EventRideNoLongerAvailable, service.RideRefPayload{RideID: p.RideID})

	default:
		g.reply(s, service.EventError, service.ErrorPayload{Message: fmt.Sprintf("unknown event %q", msg.Type)})
	}
}

func (g *Gateway) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("payload is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("malformed payload")
	}
	if err := g.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func (g *Gateway) reply(s *Session, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		g.logger.Error("failed to encode reply", zap.String("event", event), zap.Error(err))
		return
	}
	if !s.enqueue(frame) {
		g.logger.Debug("reply dropped", zap.String("event", event))
	}
}
