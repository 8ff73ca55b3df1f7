package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/service"
)

// RideLifecycle is the ride state machine as seen by HTTP.
type RideLifecycle interface {
	Request(ctx context.Context, req service.RideRequest) (*service.RequestResult, error)
	Accept(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	Arrive(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	Wait(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	BypassWait(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	Start(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	Complete(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	Cancel(ctx context.Context, rideID string, actor domain.Identity) (*domain.Ride, error)
	CancelAfterAccept(ctx context.Context, rideID, driverID string) (*service.WithdrawResult, error)
}

// RideQueries reads rides and their dispatch state.
type RideQueries interface {
	GetRide(ctx context.Context, rideID string, actor domain.Identity) (*domain.Ride, error)
	DispatchState(ctx context.Context, rideID string, actor domain.Identity) (*domain.DispatchRecord, error)
	ListCustomerRides(ctx context.Context, customerID string, limit int) (*service.CustomerRides, error)
}

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	lifecycle RideLifecycle
	queries   RideQueries
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(lifecycle RideLifecycle, queries RideQueries) *RideHandler {
	return &RideHandler{lifecycle: lifecycle, queries: queries}
}

// RequestRideBody is the HTTP request body for requesting a ride.
type RequestRideBody struct {
	Pickup        *LocationBody `json:"pickup"`
	Dropoff       *LocationBody `json:"dropoff"`
	VehicleClass  string        `json:"vehicle_class"`
	Passengers    int           `json:"passengers"`
	Amount        string        `json:"amount,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	DurationMin   float64       `json:"duration_min,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
}

// RequestRideResponse is the HTTP response for a ride request.
type RequestRideResponse struct {
	Ride            RideResponse `json:"ride"`
	DriversNotified int          `json:"drivers_notified"`
}

// WithdrawResponse is the HTTP response for a driver withdrawal.
type WithdrawResponse struct {
	Ride           RideResponse `json:"ride"`
	DriversOffered int          `json:"drivers_offered"`
}

// DispatchResponse is the customer's view of the live offer state.
type DispatchResponse struct {
	RideID          string   `json:"ride_id"`
	Status          string   `json:"status,omitempty"`
	AssignedDriver  string   `json:"assigned_driver,omitempty"`
	NotifiedDrivers int      `json:"notified_drivers"`
	RejectedDrivers []string `json:"rejected_drivers"`
}

// RequestRide handles POST /v1/rides
func (h *RideHandler) RequestRide(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	var body RequestRideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.lifecycle.Request(c.Request.Context(), service.RideRequest{
		CustomerID:    id.UserID,
		Pickup:        body.Pickup.toDomain(),
		Dropoff:       body.Dropoff.toDomain(),
		VehicleClass:  body.VehicleClass,
		Passengers:    body.Passengers,
		Amount:        body.Amount,
		Currency:      body.Currency,
		DurationMin:   body.DurationMin,
		PaymentMethod: domain.PaymentMethod(body.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, RequestRideResponse{
		Ride:            toRideResponse(result.Ride),
		DriversNotified: len(result.NotifiedDrivers),
	})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	ride, err := h.queries.GetRide(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetDispatch handles GET /v1/rides/:id/dispatch
func (h *RideHandler) GetDispatch(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	record, err := h.queries.DispatchState(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		respondError(c, err)
		return
	}

	rejected := record.RejectedDrivers
	if rejected == nil {
		rejected = []string{}
	}
	respondJSON(c, http.StatusOK, DispatchResponse{
		RideID:          record.RideID,
		Status:          string(record.Status),
		AssignedDriver:  record.AssignedDriver,
		NotifiedDrivers: len(record.NotifiedDrivers),
		RejectedDrivers: rejected,
	})
}

// Accept handles POST /v1/rides/:id/accept
func (h *RideHandler) Accept(c *gin.Context) {
	h.driverAction(c, h.lifecycle.Accept)
}

// Arrive handles POST /v1/rides/:id/arrive
func (h *RideHandler) Arrive(c *gin.Context) {
	h.driverAction(c, h.lifecycle.Arrive)
}

// Wait handles POST /v1/rides/:id/wait
func (h *RideHandler) Wait(c *gin.Context) {
	h.driverAction(c, h.lifecycle.Wait)
}

// BypassWait handles POST /v1/rides/:id/bypass-wait
func (h *RideHandler) BypassWait(c *gin.Context) {
	h.driverAction(c, h.lifecycle.BypassWait)
}

// Start handles POST /v1/rides/:id/start
func (h *RideHandler) Start(c *gin.Context) {
	h.driverAction(c, h.lifecycle.Start)
}

// Complete handles POST /v1/rides/:id/complete
func (h *RideHandler) Complete(c *gin.Context) {
	h.driverAction(c, h.lifecycle.Complete)
}

// Cancel handles POST /v1/rides/:id/cancel for either party.
func (h *RideHandler) Cancel(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	ride, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// Withdraw handles POST /v1/rides/:id/withdraw
func (h *RideHandler) Withdraw(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.CancelAfterAccept(c.Request.Context(), c.Param("id"), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, WithdrawResponse{
		Ride:           toRideResponse(result.Ride),
		DriversOffered: len(result.ReofferedTo),
	})
}

func (h *RideHandler) driverAction(c *gin.Context, action func(ctx context.Context, rideID, driverID string) (*domain.Ride, error)) {
	id, ok := actor(c)
	if !ok {
		return
	}

	ride, err := action(c.Request.Context(), c.Param("id"), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
