package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"interaction-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// client serialises writes; gorilla connections allow one writer at a time
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(deadline time.Time, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per user
type WSHub struct {
	mu          sync.RWMutex
	connections map[models.UserID]*client
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[models.UserID]*client)}
}

// Register registers a new WebSocket connection for a user, replacing any previous one
func (h *WSHub) Register(userID models.UserID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[userID]; ok {
		existing.conn.Close()
	}
	h.connections[userID] = &client{conn: conn}

	log.Info().Str("user_id", userID.String()).Msg("WebSocket connection registered")
}

// Unregister removes the user's connection if it is still the given one
func (h *WSHub) Unregister(userID models.UserID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.connections[userID]; ok && c.conn == conn {
		c.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID.String()).Msg("WebSocket connection unregistered")
	}
}

// SendToUser writes a JSON message to a connected user
func (h *WSHub) SendToUser(ctx context.Context, userID models.UserID, message any) error {
	h.mu.RLock()
	c, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.write(deadline, data); err != nil {
		h.Unregister(userID, c.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID models.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// Name implements Sink
func (h *WSHub) Name() string { return "websocket" }

// Deliver implements Sink. Offline users are skipped; they catch up over HTTP.
func (h *WSHub) Deliver(ctx context.Context, env Envelope) error {
	if !h.IsOnline(env.Target) {
		return nil
	}
	return h.SendToUser(ctx, env.Target, env)
}
