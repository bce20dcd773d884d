package handlers

import (
	"net/http"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token. An empty token clears it.
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req struct {
		PushToken string `json:"push_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.RegisterPushToken(ctx, userID, req.PushToken); err != nil {
		respondServiceError(w, r, err, "update push token")
		return
	}

	log.Info().Str("user_id", userID.String()).Msg("Push token updated")

	w.WriteHeader(http.StatusNoContent)
}
