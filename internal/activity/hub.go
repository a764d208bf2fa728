// Package activity runs the WebSocket channel that keeps the inactivity
// state machine fed. Browsers report user interactions over it; the server
// pushes timeout warnings and the final sign-out notice back.
package activity

import (
	"context"
	"log/slog"

	"mlekara-shop/internal/observability"
)

// BroadcastMessage represents a frame addressed to every connection of one
// session (a user may have several tabs open on the same session).
type BroadcastMessage struct {
	SessionToken string
	Message      []byte
}

// Hub maintains active clients and routes frames to them
type Hub struct {
	// Registered clients by session token
	clients map[string]map[*Client]bool

	// Broadcast channel
	broadcast chan *BroadcastMessage

	// Register client
	register chan *Client

	// Unregister client
	unregister chan *Client

	// Shutdown signal
	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *BroadcastMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("activity hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			if h.clients[client.sessionToken] == nil {
				h.clients[client.sessionToken] = make(map[*Client]bool)
			}
			h.clients[client.sessionToken][client] = true
			observability.ActivityConnectionsActive.Inc()
			slog.Info("activity client registered",
				slog.String("user_id", client.userID))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			// Deliver to every tab of the session
			if clients, ok := h.clients[message.SessionToken]; ok {
				for client := range clients {
					select {
					case client.send <- message.Message:
					default:
						// Client's send buffer is full, close connection
						h.closeClientSend(client)
						delete(clients, client)
					}
				}
			}
		}
	}
}

// unregisterClient safely removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.clients[client.sessionToken]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			h.closeClientSend(client)
			observability.ActivityConnectionsActive.Dec()
			slog.Info("activity client unregistered",
				slog.String("user_id", client.userID))

			// Clean up sessions with no remaining tabs
			if len(clients) == 0 {
				delete(h.clients, client.sessionToken)
			}
		}
	}
}

// closeClientSend safely closes a client's send channel
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for _, clients := range h.clients {
		for client := range clients {
			h.closeClientSend(client)
			slog.Info("closed activity connection",
				slog.String("user_id", client.userID))
		}
	}

	slog.Info("activity hub shutdown complete")
}

// Broadcast sends a frame to every connection of a session
func (h *Hub) Broadcast(sessionToken string, message []byte) {
	h.broadcast <- &BroadcastMessage{
		SessionToken: sessionToken,
		Message:      message,
	}
}

// Register registers a client with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
