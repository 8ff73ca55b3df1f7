package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/fare"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

// DriverPresence is the driver availability surface.
type DriverPresence interface {
	UpdateLocation(ctx context.Context, req service.UpdateLocationRequest) error
	GoOnline(ctx context.Context, driverID string) (*domain.Driver, error)
	GoOffline(ctx context.Context, driverID string) (*domain.Driver, error)
}

// TokenIssuer signs bearer tokens for newly registered accounts.
type TokenIssuer interface {
	Issue(id domain.Identity) (string, error)
}

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	presence   DriverPresence
	driverRepo repository.DriverRepository
	tokens     TokenIssuer
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(presence DriverPresence, driverRepo repository.DriverRepository, tokens TokenIssuer) *DriverHandler {
	return &DriverHandler{
		presence:   presence,
		driverRepo: driverRepo,
		tokens:     tokens,
	}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	VehicleClass string   `json:"vehicle_class,omitempty"`
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehicleClass string `json:"vehicle_class"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehicleClass string `json:"vehicle_class"`
	Status       string `json:"status"`
	Token        string `json:"token,omitempty"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:           d.ID,
		Name:         d.Name,
		Phone:        d.Phone,
		VehicleClass: d.VehicleClass,
		Status:       string(d.Status),
	}
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" || req.Phone == "" {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}
	if _, err := fare.Lookup(req.VehicleClass); err != nil {
		respondError(c, err)
		return
	}

	driver := &domain.Driver{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Phone:        req.Phone,
		VehicleClass: req.VehicleClass,
		Status:       domain.DriverStatusOffline,
	}
	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(domain.Identity{UserID: driver.ID, Role: domain.RoleDriver})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toDriverResponse(driver)
	resp.Token = token
	respondJSON(c, http.StatusCreated, resp)
}

// UpdateLocation handles POST /v1/drivers/me/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}

	err := h.presence.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID:     id.UserID,
		Lat:          *req.Lat,
		Lng:          *req.Lng,
		VehicleClass: req.VehicleClass,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// GoOnline handles POST /v1/drivers/me/online
func (h *DriverHandler) GoOnline(c *gin.Context) {
	h.presenceChange(c, h.presence.GoOnline)
}

// GoOffline handles POST /v1/drivers/me/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	h.presenceChange(c, h.presence.GoOffline)
}

func (h *DriverHandler) presenceChange(c *gin.Context, change func(ctx context.Context, driverID string) (*domain.Driver, error)) {
	id, ok := actor(c)
	if !ok {
		return
	}

	driver, err := change(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}
