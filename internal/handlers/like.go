package handlers

import (
	"context"
	"net/http"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/models"
	"interaction-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// LikeHandler handles likes and matches
type LikeHandler struct {
	likeService *services.LikeService
}

// NewLikeHandler creates a new like handler
func NewLikeHandler(likeService *services.LikeService) *LikeHandler {
	return &LikeHandler{
		likeService: likeService,
	}
}

// Like handles POST /api/v1/likes/{user_id}
func (h *LikeHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	recipientID, ok := userParam(w, r, "user_id")
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.likeService.Like(ctx, userID, recipientID, req.Message)
	if err != nil {
		respondServiceError(w, r, err, "like user")
		return
	}

	if result.IsMatch {
		log.Info().
			Str("user_id", userID.String()).
			Str("recipient_id", recipientID.String()).
			Msg("Match created")
	}

	respondJSON(w, http.StatusCreated, result)
}

// Unlike handles DELETE /api/v1/likes/{user_id}
func (h *LikeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	recipientID, ok := userParam(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.likeService.Unlike(ctx, userID, recipientID); err != nil {
		respondServiceError(w, r, err, "unlike user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListReceived handles GET /api/v1/likes/received
func (h *LikeHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list received likes", h.likeService.ListReceived)
}

// ListSent handles GET /api/v1/likes/sent
func (h *LikeHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list sent likes", h.likeService.ListSent)
}

// ListMatches handles GET /api/v1/matches
func (h *LikeHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list matches", h.likeService.ListMatches)
}

// GetQuota handles GET /api/v1/likes/quota
func (h *LikeHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	quota, err := h.likeService.Quota(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err, "get like quota")
		return
	}

	respondJSON(w, http.StatusOK, quota)
}

func (h *LikeHandler) list(w http.ResponseWriter, r *http.Request, action string, fetch func(ctx context.Context, id models.UserID) ([]*models.Like, error)) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	likes, err := fetch(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err, action)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"likes": nonNil(likes)})
}
