package handlers

import (
	"net/http"

	"interaction-backend/internal/middleware"
	"interaction-backend/internal/models"
	"interaction-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PermissionHandler handles photo access requests
type PermissionHandler struct {
	permissionService *services.PermissionService
}

// NewPermissionHandler creates a new permission handler
func NewPermissionHandler(permissionService *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{
		permissionService: permissionService,
	}
}

type accessRequest struct {
	Message string `json:"message"`
}

type respondRequest struct {
	Status  models.PermissionStatus `json:"status"`
	Message string                  `json:"message"`
}

type grantRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// RequestAccess handles POST /api/v1/photos/{photo_id}/permissions
func (h *PermissionHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req accessRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	perm, err := h.permissionService.RequestAccess(ctx, userID, chi.URLParam(r, "photo_id"), req.Message)
	if err != nil {
		respondServiceError(w, r, err, "request photo access")
		return
	}

	respondJSON(w, http.StatusOK, perm)
}

// Respond handles PUT /api/v1/permissions/{permission_id}
func (h *PermissionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	perm, err := h.permissionService.Respond(ctx, userID, chi.URLParam(r, "permission_id"), req.Status, req.Message)
	if err != nil {
		respondServiceError(w, r, err, "respond to permission request")
		return
	}

	respondJSON(w, http.StatusOK, perm)
}

// RespondFor handles PUT /api/v1/photos/{photo_id}/permissions/{requester_id}
func (h *PermissionHandler) RespondFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	requesterID, ok := userParam(w, r, "requester_id")
	if !ok {
		return
	}
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	perm, err := h.permissionService.RespondFor(ctx, userID, chi.URLParam(r, "photo_id"), requesterID, req.Status, req.Message)
	if err != nil {
		respondServiceError(w, r, err, "respond to permission request")
		return
	}

	respondJSON(w, http.StatusOK, perm)
}

// Grant handles POST /api/v1/photos/{photo_id}/grants
func (h *PermissionHandler) Grant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req grantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	requesterID, err := models.ParseUserID(req.UserID)
	if err != nil {
		respondServiceError(w, r, err, "grant photo access")
		return
	}

	perm, err := h.permissionService.Grant(ctx, userID, chi.URLParam(r, "photo_id"), requesterID, req.Message)
	if err != nil {
		respondServiceError(w, r, err, "grant photo access")
		return
	}

	respondJSON(w, http.StatusOK, perm)
}

// Revoke handles POST /api/v1/permissions/{permission_id}/revoke
func (h *PermissionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	perm, err := h.permissionService.Revoke(ctx, userID, chi.URLParam(r, "permission_id"))
	if err != nil {
		respondServiceError(w, r, err, "revoke permission")
		return
	}

	respondJSON(w, http.StatusOK, perm)
}

// ApproveAll handles POST /api/v1/permissions/approve-all
func (h *PermissionHandler) ApproveAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var requesterID *models.UserID
	if raw := r.URL.Query().Get("requester_id"); raw != "" {
		id, err := models.ParseUserID(raw)
		if err != nil {
			respondServiceError(w, r, err, "approve pending requests")
			return
		}
		requesterID = &id
	}

	approved, err := h.permissionService.ApproveAllPending(ctx, userID, requesterID)
	if err != nil {
		respondServiceError(w, r, err, "approve pending requests")
		return
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("approved", approved).
		Msg("Pending requests approved")

	respondJSON(w, http.StatusOK, map[string]int{"approved": approved})
}

// ListIncoming handles GET /api/v1/permissions/incoming
func (h *PermissionHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	status := models.PermissionStatus(r.URL.Query().Get("status"))
	perms, err := h.permissionService.ListIncoming(ctx, userID, status)
	if err != nil {
		respondServiceError(w, r, err, "list incoming requests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"permissions": nonNil(perms)})
}

// ListOutgoing handles GET /api/v1/permissions/outgoing
func (h *PermissionHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	perms, err := h.permissionService.ListOutgoing(ctx, userID)
	if err != nil {
		respondServiceError(w, r, err, "list outgoing requests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"permissions": nonNil(perms)})
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
