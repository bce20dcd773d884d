package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/models"
	"interaction-backend/internal/notify"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is a client-to-server frame
type WSMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// WebSocketHandler streams events to connected users
type WebSocketHandler struct {
	hub       *notify.WSHub
	validator middleware.TokenValidator
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *notify.WSHub, validator middleware.TokenValidator) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.validator.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	log.Info().Str("user_id", userID.String()).Msg("WebSocket connection established")

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID.String()).Msg("WebSocket error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(ctx, userID, WSMessage{Type: "error", Message: "Invalid message format"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(ctx, userID, WSMessage{Type: "pong"})
		default:
			h.reply(ctx, userID, WSMessage{Type: "error", Message: "Unknown message type"})
		}
	}
}

// reply goes through the hub, which serialises writes on the connection
func (h *WebSocketHandler) reply(ctx context.Context, userID models.UserID, msg WSMessage) {
	if err := h.hub.SendToUser(ctx, userID, msg); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to send WebSocket reply")
	}
}
