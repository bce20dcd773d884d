package services

import (
	"context"
	"fmt"
	"time"

	"interaction-backend/internal/models"

	"github.com/google/uuid"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// PhotoService handles photo uploads and visibility filtering
type PhotoService struct {
	users       UserStore
	photos      PhotoStore
	permissions PermissionStore
	blobs       BlobStore
	now         func() time.Time
}

// NewPhotoService creates a new photo service
func NewPhotoService(users UserStore, photos PhotoStore, permissions PermissionStore, blobs BlobStore) *PhotoService {
	return &PhotoService{
		users:       users,
		photos:      photos,
		permissions: permissions,
		blobs:       blobs,
		now:         time.Now,
	}
}

// UploadRequest describes a photo the client is about to upload
type UploadRequest struct {
	ContentType string            `json:"content_type"`
	Visibility  models.Visibility `json:"visibility"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Size        int64             `json:"size"`
}

// UploadResponse carries the pre-signed URL and the created record
type UploadResponse struct {
	Photo     *models.Photo `json:"photo"`
	UploadURL string        `json:"upload_url"`
	ExpiresIn int           `json:"expires_in"`
}

// Upload generates a pre-signed URL and creates the photo record.
// The owner's first photo becomes the profile photo.
func (s *PhotoService) Upload(ctx context.Context, ownerID models.UserID, req UploadRequest) (*UploadResponse, error) {
	ext, ok := allowedImageTypes[req.ContentType]
	if !ok {
		return nil, &models.ValidationError{Field: "content_type", Reason: "must be an image type"}
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPublic
	}
	if !req.Visibility.Valid() {
		return nil, &models.ValidationError{Field: "visibility", Reason: "must be public, private or friends_only"}
	}

	photoID := uuid.New().String()
	key := fmt.Sprintf("photos/%s/%s.%s", ownerID, photoID, ext)

	upload, err := s.blobs.PresignUpload(ctx, key, req.ContentType)
	if err != nil {
		return nil, err
	}

	photo := &models.Photo{
		ID:         photoID,
		OwnerID:    ownerID,
		StorageKey: key,
		URL:        upload.ObjectURL,
		Visibility: req.Visibility,
		Metadata: models.PhotoMetadata{
			Width:    req.Width,
			Height:   req.Height,
			Size:     req.Size,
			MimeType: req.ContentType,
		},
		UploadedAt: s.now(),
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, fmt.Errorf("failed to create photo record: %w", err)
	}

	return &UploadResponse{
		Photo:     photo,
		UploadURL: upload.UploadURL,
		ExpiresIn: upload.ExpiresIn,
	}, nil
}

// VisiblePhotos returns the owner's live photos as the viewer may see them.
// Private photos without a live grant are listed with the URL withheld;
// friends-only photos are shown to the owner alone.
func (s *PhotoService) VisiblePhotos(ctx context.Context, viewerID, ownerID models.UserID) ([]*models.VisiblePhoto, error) {
	exists, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", ownerID, models.ErrNotFound)
	}

	photos, err := s.photos.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]*models.VisiblePhoto, 0, len(photos))
	if viewerID == ownerID {
		for _, p := range photos {
			result = append(result, &models.VisiblePhoto{Photo: *p, HasPermission: true})
		}
		return result, nil
	}

	grants, err := s.permissions.ListApprovedForViewer(ctx, ownerID, viewerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	granted := make(map[string]bool, len(grants))
	for _, g := range grants {
		if g.Grants(now) {
			granted[g.PhotoID] = true
		}
	}

	for _, p := range photos {
		switch p.Visibility {
		case models.VisibilityPublic:
			result = append(result, &models.VisiblePhoto{Photo: *p, HasPermission: true})
		case models.VisibilityPrivate:
			vp := &models.VisiblePhoto{Photo: *p, HasPermission: granted[p.ID]}
			if !vp.HasPermission {
				vp.URL = ""
			}
			result = append(result, vp)
		}
	}
	return result, nil
}

// SetVisibility changes the tier of one of the owner's photos
func (s *PhotoService) SetVisibility(ctx context.Context, ownerID models.UserID, photoID string, visibility models.Visibility) (*models.Photo, error) {
	if !visibility.Valid() {
		return nil, &models.ValidationError{Field: "visibility", Reason: "must be public, private or friends_only"}
	}
	if _, err := s.ownedPhoto(ctx, ownerID, photoID); err != nil {
		return nil, err
	}
	return s.photos.UpdateVisibility(ctx, photoID, visibility)
}

// SetProfilePhoto makes the photo the owner's profile photo
func (s *PhotoService) SetProfilePhoto(ctx context.Context, ownerID models.UserID, photoID string) error {
	if _, err := s.ownedPhoto(ctx, ownerID, photoID); err != nil {
		return err
	}
	return s.photos.SetProfile(ctx, ownerID, photoID)
}

// DeletePhoto soft-deletes one of the owner's photos. Grants on it become inert.
func (s *PhotoService) DeletePhoto(ctx context.Context, ownerID models.UserID, photoID string) error {
	if _, err := s.ownedPhoto(ctx, ownerID, photoID); err != nil {
		return err
	}
	return s.photos.SoftDelete(ctx, ownerID, photoID)
}

// ownedPhoto loads a live photo and checks the actor owns it
func (s *PhotoService) ownedPhoto(ctx context.Context, ownerID models.UserID, photoID string) (*models.Photo, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.IsDeleted {
		return nil, fmt.Errorf("photo %s: %w", photoID, models.ErrNotFound)
	}
	if photo.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	return photo, nil
}
