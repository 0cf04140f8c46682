package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carwave/carpool/internal/api/dto"
	"github.com/carwave/carpool/internal/domain/request"
)

// CreateRide handles POST /v1/drives
func (h *Handlers) CreateRide(c *gin.Context) {
	driver, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateRideRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.Rides.CreateRide(c.Request.Context(), driver, req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GetRide handles GET /v1/drives/:id
func (h *Handlers) GetRide(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	r, err := h.Rides.GetRide(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateRide handles PATCH /v1/drives/:id
func (h *Handlers) UpdateRide(c *gin.Context) {
	driver, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRideRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.Rides.UpdateRide(c.Request.Context(), driver, id, req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// CancelRide handles DELETE /v1/drives/:id
func (h *Handlers) CancelRide(c *gin.Context) {
	driver, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Rides.CancelRide(c.Request.Context(), driver, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPassengers handles GET /v1/drives/:id/passengers
func (h *Handlers) ListPassengers(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	reqs, err := h.Requests.Passengers(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// ListRequests handles GET /v1/drives/:id/passenger-requests?status=
func (h *Handlers) ListRequests(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var status *request.Status
	if raw := c.Query("status"); raw != "" {
		s := request.Status(raw)
		status = &s
	}

	reqs, err := h.Requests.List(c.Request.Context(), actor(c), id, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// CreateRequest handles POST /v1/drives/:id/passenger-requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	rider, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	req, err := h.Requests.Create(c.Request.Context(), rider, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// DecideRequest handles POST /v1/drives/:id/passenger-requests/:user_id
func (h *Handlers) DecideRequest(c *gin.Context) {
	driver, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	rider, ok := h.uuidParam(c, "user_id")
	if !ok {
		return
	}
	var body dto.DecideRequest
	if !h.bindJSON(c, &body) {
		return
	}
	action, err := body.ParseAction()
	if err != nil {
		h.respondError(c, err)
		return
	}

	req, err := h.Requests.Decide(c.Request.Context(), driver, id, rider, action)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// WithdrawRequest handles DELETE /v1/drives/:id/passenger-requests/:user_id
func (h *Handlers) WithdrawRequest(c *gin.Context) {
	rider, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	target, ok := h.uuidParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.Requests.Withdraw(c.Request.Context(), rider, id, target); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
