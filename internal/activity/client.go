package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/session"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 512
)

// SessionToucher is the slice of the auth layer a client needs: persisting
// activity and revoking the session when the idle timeout fires.
type SessionToucher interface {
	TouchActivity(ctx context.Context, token string) error
	Logout(ctx context.Context, token string) error
}

type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	userID       string
	sessionToken string
	monitor      *session.Monitor
	sessions     SessionToucher
	writeMu      sync.Mutex
	closed       atomic.Bool
	ctx          context.Context
	ctxCancel    context.CancelFunc
}

// ClientMessage is a frame from the browser reporting user interaction.
type ClientMessage struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
}

// ServerMessage is a frame pushed to the browser.
type ServerMessage struct {
	Type             string `json:"type"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
	Message          string `json:"message,omitempty"`
}

// NewClient wires a connection to the hub and the session's idle monitor.
// The monitor's callbacks must already target this session; the client only
// starts and stops it.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID, sessionToken string,
	sessions SessionToucher, monitor *session.Monitor) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		sessionToken: sessionToken,
		sessions:     sessions,
		monitor:      monitor,
		ctx:          clientCtx,
		ctxCancel:    cancel,
	}
}

// NotifyWarning pushes an inactivity warning to every tab of a session.
func NotifyWarning(hub *Hub, sessionToken string, remaining time.Duration) {
	observability.SessionWarningsIssued.Inc()

	msg := ServerMessage{
		Type:             "timeout_warning",
		RemainingSeconds: int64(remaining.Seconds()),
		Message:          "You will be signed out soon due to inactivity",
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal timeout warning", slog.String("error", err.Error()))
		return
	}
	hub.Broadcast(sessionToken, data)
}

// NotifyTimeout tells every tab the session is gone.
func NotifyTimeout(hub *Hub, sessionToken string) {
	observability.SessionTimeouts.Inc()

	msg := ServerMessage{
		Type:    "session_timeout",
		Message: "Signed out due to inactivity",
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal timeout notice", slog.String("error", err.Error()))
		return
	}
	hub.Broadcast(sessionToken, data)
}

func (c *Client) ReadPump() {
	defer func() {
		c.ctxCancel()
		c.monitor.Stop()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	if err := c.monitor.Start(); err != nil && err != session.ErrAlreadyStarted {
		slog.Warn("failed to start idle monitor",
			slog.String("error", err.Error()),
			slog.String("user_id", c.userID))
	}

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("user_id", c.userID))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("user_id", c.userID))
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			slog.Warn("invalid activity frame",
				slog.String("error", err.Error()),
				slog.String("user_id", c.userID))
			continue
		}

		if clientMsg.Type != "activity" || !session.IsActivityKind(clientMsg.Kind) {
			// Arbitrary frames must not keep the session alive
			continue
		}

		c.monitor.Touch(clientMsg.Kind)

		ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
		if err := c.sessions.TouchActivity(ctx, c.sessionToken); err != nil {
			slog.Error("failed to persist activity",
				slog.String("error", err.Error()),
				slog.String("user_id", c.userID))
		}
		cancel()
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline",
			slog.String("error", err.Error()),
			slog.String("user_id", c.userID))
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
