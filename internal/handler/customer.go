package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

// CustomerHandler handles HTTP requests for customers.
type CustomerHandler struct {
	customerRepo repository.CustomerRepository
	queries      RideQueries
	tokens       TokenIssuer
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(customerRepo repository.CustomerRepository, queries RideQueries, tokens TokenIssuer) *CustomerHandler {
	return &CustomerHandler{customerRepo: customerRepo, queries: queries, tokens: tokens}
}

// RegisterCustomerRequest is the HTTP request body for customer registration.
type RegisterCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CustomerResponse is the HTTP response for customer data.
type CustomerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Token string `json:"token,omitempty"`
}

// CustomerRidesResponse lists a customer's rides.
type CustomerRidesResponse struct {
	Rides   []RideResponse `json:"rides"`
	History []string       `json:"history"`
}

// Register handles POST /v1/customers
func (h *CustomerHandler) Register(c *gin.Context) {
	var req RegisterCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" || req.Phone == "" {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	customer := &domain.Customer{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Phone: req.Phone,
	}
	if err := h.customerRepo.Create(c.Request.Context(), customer); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(domain.Identity{UserID: customer.ID, Role: domain.RoleCustomer})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CustomerResponse{
		ID:    customer.ID,
		Name:  customer.Name,
		Phone: customer.Phone,
		Token: token,
	})
}

// ListRides handles GET /v1/customers/me/rides?limit=n
func (h *CustomerHandler) ListRides(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	result, err := h.queries.ListCustomerRides(c.Request.Context(), id.UserID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	history := result.History
	if history == nil {
		history = []string{}
	}
	respondJSON(c, http.StatusOK, CustomerRidesResponse{
		Rides:   toRideResponses(result.Rides),
		History: history,
	})
}
