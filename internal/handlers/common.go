package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string     `json:"error"`
	Field   string     `json:"field,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Current string     `json:"current_status,omitempty"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondServiceError maps a service error to a typed response.
// Anything unrecognised is a store fault: logged in full, reported generically.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var (
		validation *models.ValidationError
		state      *models.InvalidStateError
		quota      *models.QuotaExceededError
	)

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  validation.Error(),
			Field:  validation.Field,
			Reason: validation.Reason,
		})
	case errors.As(err, &state):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   state.Reason,
			Current: state.Current,
		})
	case errors.As(err, &quota):
		resetAt := quota.ResetAt
		respondJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:   "daily like quota exceeded",
			ResetAt: &resetAt,
		})
	case errors.Is(err, models.ErrNotFound):
		respondError(w, "not found", http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		respondError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, models.ErrAlreadyExists):
		respondError(w, models.ErrAlreadyExists.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrSelfReference):
		respondError(w, models.ErrSelfReference.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrInvalidType), errors.Is(err, models.ErrInvalidStatus):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().
			Err(err).
			Str("user_id", middleware.GetUserID(r.Context()).String()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msgf("Failed to %s", action)
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into v, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// userParam parses a user ID from the route, answering 400 on failure
func userParam(w http.ResponseWriter, r *http.Request, name string) (models.UserID, bool) {
	id, err := models.ParseUserID(chi.URLParam(r, name))
	if err != nil {
		respondServiceError(w, r, err, "parse user id")
		return "", false
	}
	return id, true
}
