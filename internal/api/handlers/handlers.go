package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/carwave/carpool/internal/api/dto"
	"github.com/carwave/carpool/internal/service/reputation"
	"github.com/carwave/carpool/internal/service/requests"
	"github.com/carwave/carpool/internal/service/rides"
	"github.com/carwave/carpool/internal/service/search"
	"github.com/carwave/carpool/internal/service/users"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/websocket"
)

// ActorKey is the gin context key holding the acting user id
const ActorKey = "actor_id"

// ActorHeader carries the acting user id
const ActorHeader = "X-User-ID"

// Services bundles the engine services the handlers expose
type Services struct {
	Search     *search.Service
	Requests   *requests.Service
	Rides      *rides.Service
	Users      *users.Service
	Reputation *reputation.Service
}

// Handlers holds all handler dependencies
type Handlers struct {
	Services
	Hub      *websocket.Hub
	Logger   *logger.Logger
	Location *time.Location
	Upgrader gorilla.Upgrader
}

// NewHandlers creates a new Handlers instance. loc interprets zone-less
// times in search queries.
func NewHandlers(svc Services, hub *websocket.Hub, log *logger.Logger, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{
		Services: svc,
		Hub:      hub,
		Logger:   logger.OrNop(log),
		Location: loc,
		Upgrader: DefaultUpgrader(1024, 1024),
	}
}

// ActingUser parses the X-User-ID header. A missing header leaves the
// request anonymous; a malformed one is rejected.
func ActingUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		if raw == "" {
			c.Next()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, apperrors.Validation(ActorHeader, "acting user id must be a UUID"))
			return
		}
		c.Set(ActorKey, id)
		c.Next()
	}
}

// actor returns the acting user or nil for anonymous requests
func actor(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	id := v.(uuid.UUID)
	return &id
}

// requireActor returns the acting user or answers 401
func (h *Handlers) requireActor(c *gin.Context) (uuid.UUID, bool) {
	id := actor(c)
	if id == nil {
		h.respondError(c, apperrors.ErrAnonymous)
		return uuid.Nil, false
	}
	return *id, true
}

func (h *Handlers) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.respondError(c, apperrors.Validation(name, "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, &apperrors.AppError{
			Code:    apperrors.CodeValidation,
			Message: "Invalid request payload",
			Field:   "body",
			Status:  http.StatusBadRequest,
			Err:     err,
		})
		return false
	}
	return true
}

// respondError renders err as {code, message, field} with its status.
// Server-side failures are logged; their causes never reach the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Err(err))
	}
	abortWithError(c, appErr)
}

func abortWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.GetAppError(err)
	}
	c.AbortWithStatusJSON(appErr.Status, dto.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	connections := 0
	if h.Hub != nil {
		connections = h.Hub.GetActiveConnections()
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "connections": connections})
}
