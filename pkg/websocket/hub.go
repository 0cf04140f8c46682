package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/carwave/carpool/pkg/logger"
)

// Hub tracks connected clients and routes lifecycle notices to them
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logger.Logger
}

// Message is the envelope written to clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Component(log, "websocket"),
	}
}

// Run serves registrations until ctx is done, then drops every client.
// Registrations arriving after that are refused.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered",
				logger.String("client_id", client.ID),
				logger.String("user_id", client.UserID),
			)

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		h.logger.Info("Client unregistered", logger.String("client_id", client.ID))
	}
}

// Register registers a new client. Once the hub has stopped the client's
// Send channel is closed instead, which ends its WritePump.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister unregisters a client. It is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser delivers message to every connection of userID. It never
// blocks: a client with a full buffer misses the message.
func (h *Hub) SendToUser(userID string, message Message) {
	h.deliver(message, func(c *Client) bool { return c.UserID == userID })
}

// BroadcastToRide delivers message to clients watching rideID
func (h *Hub) BroadcastToRide(rideID string, message Message) {
	h.deliver(message, func(c *Client) bool { return c.IsSubscribedToRide(rideID) })
}

func (h *Hub) deliver(message Message, match func(*Client) bool) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal message", logger.Err(err), logger.String("type", message.Type))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Client send buffer full",
				logger.String("client_id", client.ID),
				logger.String("type", message.Type),
			)
		}
	}
}

// GetActiveConnections returns the number of active connections
func (h *Hub) GetActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
