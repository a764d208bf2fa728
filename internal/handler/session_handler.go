package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mlekara-shop/internal/activity"
	"mlekara-shop/internal/middleware"
	"mlekara-shop/internal/service"
	"mlekara-shop/internal/session"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// In production, check against allowed origins
		return true
	},
}

// SessionHandler upgrades requests onto the session-activity channel. Each
// connection gets an idle monitor; the warning and the final sign-out are
// pushed back over the same socket.
type SessionHandler struct {
	hub         *activity.Hub
	authService *service.AuthService
	idleTimeout time.Duration
	idleWarning time.Duration
}

// NewSessionHandler creates a new session-activity handler
func NewSessionHandler(hub *activity.Hub, authService *service.AuthService, idleTimeout, idleWarning time.Duration) *SessionHandler {
	return &SessionHandler{
		hub:         hub,
		authService: authService,
		idleTimeout: idleTimeout,
		idleWarning: idleWarning,
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *SessionHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"Session not found"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sessionToken := sess.Token
	monitor := session.NewMonitor(session.Config{
		Timeout: h.idleTimeout,
		Warning: h.idleWarning,
		OnWarning: func(remaining time.Duration) {
			activity.NotifyWarning(h.hub, sessionToken, remaining)
		},
		OnTimeout: func() {
			// The HTTP request is long gone when the timeout fires
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := h.authService.Logout(ctx, sessionToken); err != nil {
				slog.Error("failed to revoke idle session",
					slog.String("error", err.Error()),
					slog.String("user_id", userID))
			}
			activity.NotifyTimeout(h.hub, sessionToken)
		},
	})

	// The request context dies when this handler returns; the connection
	// outlives it.
	client := activity.NewClient(context.Background(), h.hub, conn, userID, sessionToken, h.authService, monitor)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
