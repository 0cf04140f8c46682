package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carwave/carpool/internal/api/dto"
)

// CreateCar handles POST /v1/cars
func (h *Handlers) CreateCar(c *gin.Context) {
	owner, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateCarRequest
	if !h.bindJSON(c, &req) {
		return
	}

	car, err := h.Rides.CreateCar(c.Request.Context(), owner, req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, car)
}

// GetCar handles GET /v1/cars/:plate
func (h *Handlers) GetCar(c *gin.Context) {
	car, err := h.Rides.GetCar(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, car)
}

// UpdateCar handles PATCH /v1/cars/:plate
func (h *Handlers) UpdateCar(c *gin.Context) {
	owner, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdateCarRequest
	if !h.bindJSON(c, &req) {
		return
	}

	car, err := h.Rides.UpdateCar(c.Request.Context(), owner, c.Param("plate"), req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, car)
}

// DeleteCar handles DELETE /v1/cars/:plate
func (h *Handlers) DeleteCar(c *gin.Context) {
	owner, ok := h.requireActor(c)
	if !ok {
		return
	}
	if err := h.Rides.DeleteCar(c.Request.Context(), owner, c.Param("plate")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
