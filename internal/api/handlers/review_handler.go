package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/carwave/carpool/internal/api/dto"
	"github.com/carwave/carpool/internal/domain/review"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func (h *Handlers) roleQuery(c *gin.Context) (review.Role, bool) {
	role, err := review.ParseRole(c.DefaultQuery("role", string(review.RoleDriver)))
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	return role, true
}

// GetReputation handles GET /v1/users/:id/reputation?role=&n=
func (h *Handlers) GetReputation(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	role, ok := h.roleQuery(c)
	if !ok {
		return
	}

	summary, err := h.Reputation.Summary(c.Request.Context(), id, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if raw := c.Query("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, apperrors.Validation("n", "n must be an integer"))
			return
		}
		if summary.TopTags, err = h.Reputation.TopTags(c.Request.Context(), id, role, n); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if summary.TopTags == nil {
		summary.TopTags = []string{}
	}
	c.JSON(http.StatusOK, summary)
}

// ReviewEligibility handles GET /v1/users/:id/reviews/eligibility?role=
func (h *Handlers) ReviewEligibility(c *gin.Context) {
	author, ok := h.requireActor(c)
	if !ok {
		return
	}
	subject, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	role, ok := h.roleQuery(c)
	if !ok {
		return
	}

	allowed, err := h.Reputation.MayReview(c.Request.Context(), author, subject, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EligibilityResponse{Allowed: allowed, Role: role})
}

// UpsertReview handles PUT /v1/users/:id/reviews?role=
func (h *Handlers) UpsertReview(c *gin.Context) {
	author, ok := h.requireActor(c)
	if !ok {
		return
	}
	subject, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	role, ok := h.roleQuery(c)
	if !ok {
		return
	}
	var req dto.UpsertReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rv, created, err := h.Reputation.UpsertReview(c.Request.Context(), author, subject, role, req.Input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.ReviewResponse{Review: rv, Created: created})
}

// SuggestTags handles GET /v1/tags?q=
func (h *Handlers) SuggestTags(c *gin.Context) {
	tags, err := h.Reputation.SuggestTags(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}
