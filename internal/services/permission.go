package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"interaction-backend/internal/models"
	"interaction-backend/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxPermissionMessageLength = 500

// PermissionService runs the photo access request lifecycle
type PermissionService struct {
	users       UserStore
	photos      PhotoStore
	permissions PermissionStore
	notifier    Notifier
	grantTTL    time.Duration
	now         func() time.Time
}

// NewPermissionService creates a new permission service. Approvals expire after grantTTL;
// zero means they never expire.
func NewPermissionService(users UserStore, photos PhotoStore, permissions PermissionStore, notifier Notifier, grantTTL time.Duration) *PermissionService {
	return &PermissionService{
		users:       users,
		photos:      photos,
		permissions: permissions,
		notifier:    notifier,
		grantTTL:    grantTTL,
		now:         time.Now,
	}
}

// RequestAccess asks the owner of a private photo for access. Repeating a pending
// or approved request returns the existing record; a rejected one is reopened.
func (s *PermissionService) RequestAccess(ctx context.Context, requesterID models.UserID, photoID, message string) (*models.PermissionRequest, error) {
	message, err := cleanPermissionMessage(message)
	if err != nil {
		return nil, err
	}

	photo, err := s.livePhoto(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.Visibility != models.VisibilityPrivate {
		return nil, &models.InvalidStateError{Reason: "photo is not private", Current: string(photo.Visibility)}
	}
	if photo.OwnerID == requesterID {
		return nil, models.ErrSelfReference
	}

	perm, outcome, err := s.permissions.UpsertPending(ctx, &models.PermissionRequest{
		ID:          uuid.New().String(),
		PhotoID:     photo.ID,
		OwnerID:     photo.OwnerID,
		RequesterID: requesterID,
		Status:      models.PermissionPending,
		Message:     message,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	if outcome != models.UpsertExisting {
		s.notifier.Publish(ctx, notify.EventPermissionRequested, perm.OwnerID, perm)
	}
	return perm, nil
}

// Respond answers a pending request by its ID
func (s *PermissionService) Respond(ctx context.Context, ownerID models.UserID, permissionID string, status models.PermissionStatus, message string) (*models.PermissionRequest, error) {
	if err := checkResponseStatus(status); err != nil {
		return nil, err
	}
	perm, err := s.permissions.GetByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if perm.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	return s.respond(ctx, perm, status, message)
}

// RespondFor answers a pending request identified by photo and requester
func (s *PermissionService) RespondFor(ctx context.Context, ownerID models.UserID, photoID string, requesterID models.UserID, status models.PermissionStatus, message string) (*models.PermissionRequest, error) {
	if err := checkResponseStatus(status); err != nil {
		return nil, err
	}
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	perm, err := s.permissions.GetByPhotoAndRequester(ctx, photoID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, perm, status, message)
}

func (s *PermissionService) respond(ctx context.Context, perm *models.PermissionRequest, status models.PermissionStatus, message string) (*models.PermissionRequest, error) {
	message, err := cleanPermissionMessage(message)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var expiresAt *time.Time
	if status == models.PermissionApproved {
		expiresAt = s.expiry(now)
	}

	updated, err := s.permissions.Transition(ctx, perm.ID, models.PermissionPending, status, message, now, expiresAt)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.EventPermissionResponded, updated.RequesterID, updated)
	return updated, nil
}

// Grant gives a user access to a private photo without a prior request
func (s *PermissionService) Grant(ctx context.Context, ownerID models.UserID, photoID string, requesterID models.UserID, message string) (*models.PermissionRequest, error) {
	message, err := cleanPermissionMessage(message)
	if err != nil {
		return nil, err
	}

	photo, err := s.livePhoto(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	if requesterID == ownerID {
		return nil, models.ErrSelfReference
	}
	if photo.Visibility != models.VisibilityPrivate {
		return nil, &models.InvalidStateError{Reason: "photo is not private", Current: string(photo.Visibility)}
	}
	exists, err := s.users.Exists(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", requesterID, models.ErrNotFound)
	}

	now := s.now()
	perm, _, err := s.permissions.UpsertApproved(ctx, &models.PermissionRequest{
		ID:              uuid.New().String(),
		PhotoID:         photo.ID,
		OwnerID:         ownerID,
		RequesterID:     requesterID,
		Status:          models.PermissionApproved,
		ResponseMessage: message,
		CreatedAt:       now,
		RespondedAt:     &now,
		ExpiresAt:       s.expiry(now),
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.EventPermissionResponded, requesterID, perm)
	return perm, nil
}

// Revoke withdraws an approved grant
func (s *PermissionService) Revoke(ctx context.Context, ownerID models.UserID, permissionID string) (*models.PermissionRequest, error) {
	perm, err := s.permissions.GetByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if perm.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}

	updated, err := s.permissions.Transition(ctx, perm.ID, models.PermissionApproved, models.PermissionRejected, "", s.now(), nil)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.EventPermissionRevoked, updated.RequesterID, updated)
	return updated, nil
}

// ApproveAllPending approves every pending request for the owner's photos, or only
// those from requesterID when it is set. Records are handled one at a time and a
// failure on one does not stop the rest.
func (s *PermissionService) ApproveAllPending(ctx context.Context, ownerID models.UserID, requesterID *models.UserID) (int, error) {
	pending, err := s.permissions.ListByOwner(ctx, ownerID, models.PermissionPending)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, perm := range pending {
		if requesterID != nil && perm.RequesterID != *requesterID {
			continue
		}
		if _, err := s.respond(ctx, perm, models.PermissionApproved, ""); err != nil {
			log.Warn().
				Err(err).
				Str("permission_id", perm.ID).
				Str("owner_id", ownerID.String()).
				Msg("Failed to approve pending request")
			continue
		}
		approved++
	}
	return approved, nil
}

// ListIncoming lists requests for the owner's photos, optionally by status
func (s *PermissionService) ListIncoming(ctx context.Context, ownerID models.UserID, status models.PermissionStatus) ([]*models.PermissionRequest, error) {
	switch status {
	case "", models.PermissionPending, models.PermissionApproved, models.PermissionRejected:
	default:
		return nil, models.ErrInvalidStatus
	}
	return s.permissions.ListByOwner(ctx, ownerID, status)
}

// ListOutgoing lists the requests the user has made
func (s *PermissionService) ListOutgoing(ctx context.Context, requesterID models.UserID) ([]*models.PermissionRequest, error) {
	return s.permissions.ListByRequester(ctx, requesterID)
}

func (s *PermissionService) livePhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.IsDeleted {
		return nil, fmt.Errorf("photo %s: %w", photoID, models.ErrNotFound)
	}
	return photo, nil
}

func (s *PermissionService) expiry(now time.Time) *time.Time {
	if s.grantTTL <= 0 {
		return nil
	}
	t := now.Add(s.grantTTL)
	return &t
}

func checkResponseStatus(status models.PermissionStatus) error {
	if status != models.PermissionApproved && status != models.PermissionRejected {
		return models.ErrInvalidStatus
	}
	return nil
}

func cleanPermissionMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > maxPermissionMessageLength {
		return "", &models.ValidationError{Field: "message", Reason: "is too long"}
	}
	return message, nil
}
