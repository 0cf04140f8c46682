package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carwave/carpool/internal/api/dto"
)

// CreateUser handles POST /v1/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in, err := req.Input()
	if err != nil {
		h.respondError(c, err)
		return
	}

	u, err := h.Users.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// GetUser handles GET /v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateUser handles PATCH /v1/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	self, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in, err := req.Input()
	if err != nil {
		h.respondError(c, err)
		return
	}

	u, err := h.Users.Update(c.Request.Context(), self, id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /v1/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	self, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), self, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
