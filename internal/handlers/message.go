package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/models"
	"interaction-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles messages, reactions and read state
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

type sendMessageRequest struct {
	RecipientID string             `json:"recipient_id"`
	Type        models.MessageType `json:"type"`
	Content     string             `json:"content"`
	Metadata    json.RawMessage    `json:"metadata,omitempty"`
}

// SendMessage handles POST /api/v1/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	recipientID, err := models.ParseUserID(req.RecipientID)
	if err != nil {
		respondServiceError(w, r, err, "send message")
		return
	}
	msg, err := h.messageService.Send(ctx, userID, services.SendRequest{
		RecipientID: recipientID,
		Type:        req.Type,
		Content:     req.Content,
		Metadata:    req.Metadata,
	})
	if err != nil {
		respondServiceError(w, r, err, "send message")
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// GetConversation handles GET /api/v1/conversations/{peer_id}/messages
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	peerID, ok := userParam(w, r, "peer_id")
	if !ok {
		return
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondServiceError(w, r, &models.ValidationError{Field: "before", Reason: "must be an RFC 3339 timestamp"}, "get conversation")
			return
		}
		before = parsed
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages, err := h.messageService.History(ctx, userID, peerID, before, limit)
	if err != nil {
		respondServiceError(w, r, err, "get conversation")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": nonNil(messages)})
}

// MarkConversationRead handles PUT /api/v1/conversations/{peer_id}/read
func (h *MessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	peerID, ok := userParam(w, r, "peer_id")
	if !ok {
		return
	}

	n, err := h.messageService.MarkConversationRead(ctx, userID, peerID)
	if err != nil {
		respondServiceError(w, r, err, "mark conversation read")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

// GetUnreadCounts handles GET /api/v1/conversations/unread
func (h *MessageHandler) GetUnreadCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	counts, err := h.messageService.UnreadCounts(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err, "get unread counts")
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": counts,
		"total":         total,
	})
}

// MarkRead handles PUT /api/v1/messages/{message_id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	msg, err := h.messageService.MarkRead(ctx, userID, chi.URLParam(r, "message_id"))
	if err != nil {
		respondServiceError(w, r, err, "mark message read")
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// AddReaction handles PUT /api/v1/messages/{message_id}/reaction
func (h *MessageHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req struct {
		Emoji string `json:"emoji"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messageService.AddReaction(ctx, userID, chi.URLParam(r, "message_id"), req.Emoji)
	if err != nil {
		respondServiceError(w, r, err, "add reaction")
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// RemoveReaction handles DELETE /api/v1/messages/{message_id}/reaction
func (h *MessageHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	msg, err := h.messageService.RemoveReaction(ctx, userID, chi.URLParam(r, "message_id"))
	if err != nil {
		respondServiceError(w, r, err, "remove reaction")
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// DeleteMessage handles DELETE /api/v1/messages/{message_id}?mode=self|both
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	mode := models.DeleteMode(r.URL.Query().Get("mode"))
	result, err := h.messageService.Delete(ctx, userID, chi.URLParam(r, "message_id"), mode)
	if err != nil {
		respondServiceError(w, r, err, "delete message")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
