package handlers

import (
	"net/http"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/models"
	"interaction-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
	}
}

// GetUserPhotos handles GET /api/v1/users/{user_id}/photos
func (h *PhotoHandler) GetUserPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := middleware.GetUserID(ctx)

	ownerID, ok := userParam(w, r, "user_id")
	if !ok {
		return
	}

	photos, err := h.photoService.VisiblePhotos(ctx, viewerID, ownerID)
	if err != nil {
		respondServiceError(w, r, err, "get photos")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photos": photos,
		"total":  len(photos),
	})
}

// UploadPhoto handles POST /api/v1/photos/upload
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	response, err := h.photoService.Upload(ctx, userID, req)
	if err != nil {
		respondServiceError(w, r, err, "generate pre-signed URL")
		return
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("photo_id", response.Photo.ID).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusCreated, response)
}

// UpdateVisibility handles PATCH /api/v1/photos/{photo_id}/visibility
func (h *PhotoHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req struct {
		Visibility models.Visibility `json:"visibility"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	photo, err := h.photoService.SetVisibility(ctx, userID, chi.URLParam(r, "photo_id"), req.Visibility)
	if err != nil {
		respondServiceError(w, r, err, "update visibility")
		return
	}

	respondJSON(w, http.StatusOK, photo)
}

// SetProfilePhoto handles PUT /api/v1/photos/{photo_id}/profile
func (h *PhotoHandler) SetProfilePhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.photoService.SetProfilePhoto(ctx, userID, chi.URLParam(r, "photo_id")); err != nil {
		respondServiceError(w, r, err, "set profile photo")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeletePhoto handles DELETE /api/v1/photos/{photo_id}
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	photoID := chi.URLParam(r, "photo_id")

	if err := h.photoService.DeletePhoto(ctx, userID, photoID); err != nil {
		respondServiceError(w, r, err, "delete photo")
		return
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("photo_id", photoID).
		Msg("Photo deleted")

	w.WriteHeader(http.StatusNoContent)
}
