package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/websocket"
)

// DefaultUpgrader returns the upgrader used for /v1/ws
func DefaultUpgrader(readBuffer, writeBuffer int) gorilla.Upgrader {
	return gorilla.Upgrader{
		ReadBufferSize:  readBuffer,
		WriteBufferSize: writeBuffer,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// HandleWebSocket handles GET /v1/ws?user_id=
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		h.respondError(c, apperrors.Validation("user_id", "must be a UUID"))
		return
	}
	if h.Hub == nil {
		h.respondError(c, apperrors.ServiceUnavailable("Notifications are disabled", nil))
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, userID.String(), h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
