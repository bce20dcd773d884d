// Package memory holds in-process implementations of the service stores.
// Each store guards its own records with a mutex, which gives the same
// per-key atomicity the Postgres repositories get from conditional statements.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"interaction-backend/internal/models"
)

// Users keeps user records and like quotas
type Users struct {
	mu    sync.Mutex
	users map[models.UserID]*models.User
}

// NewUsers creates an empty user store
func NewUsers() *Users {
	return &Users{users: make(map[models.UserID]*models.User)}
}

// Add inserts or replaces a user
func (s *Users) Add(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
}

// GetByID retrieves a user by ID
func (s *Users) GetByID(_ context.Context, id models.UserID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// Exists checks whether a user exists
func (s *Users) Exists(_ context.Context, id models.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

// UpdatePushToken updates the push token for a user
func (s *Users) UpdatePushToken(_ context.Context, id models.UserID, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	u.PushToken = pushToken
	return nil
}

// decrementQuota must be called with s.mu held
func (s *Users) decrementQuota(id models.UserID) (int, error) {
	u, ok := s.users[id]
	if !ok {
		return 0, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if u.DailyLikesRemaining <= 0 {
		return 0, &models.QuotaExceededError{ResetAt: u.LikesResetAt}
	}
	u.DailyLikesRemaining--
	return u.DailyLikesRemaining, nil
}

// Photos keeps photo records
type Photos struct {
	mu     sync.Mutex
	photos map[string]*models.Photo
}

// NewPhotos creates an empty photo store
func NewPhotos() *Photos {
	return &Photos{photos: make(map[string]*models.Photo)}
}

// Create inserts a photo. The first live photo of an owner becomes the profile photo.
func (s *Photos) Create(_ context.Context, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[photo.ID]; ok {
		return fmt.Errorf("photo %s: %w", photo.ID, models.ErrAlreadyExists)
	}
	photo.IsProfile = len(s.liveLocked(photo.OwnerID)) == 0
	p := *photo
	s.photos[p.ID] = &p
	return nil
}

// GetByID retrieves a photo by ID, including soft-deleted ones
func (s *Photos) GetByID(_ context.Context, id string) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
	}
	out := *p
	return &out, nil
}

// ListByOwner retrieves the live photos of an owner, profile photo first
func (s *Photos) ListByOwner(_ context.Context, ownerID models.UserID) ([]*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.liveLocked(ownerID)
	out := make([]*models.Photo, 0, len(live))
	for _, p := range live {
		c := *p
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsProfile != out[j].IsProfile {
			return out[i].IsProfile
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// UpdateVisibility changes the tier of a live photo
func (s *Photos) UpdateVisibility(_ context.Context, id string, visibility models.Visibility) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok || p.IsDeleted {
		return nil, fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
	}
	p.Visibility = visibility
	out := *p
	return &out, nil
}

// SetProfile moves profile primacy to the given live photo of the owner
func (s *Photos) SetProfile(_ context.Context, ownerID models.UserID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.photos[id]
	if !ok || target.IsDeleted || target.OwnerID != ownerID {
		return fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
	}
	for _, p := range s.liveLocked(ownerID) {
		p.IsProfile = p.ID == id
	}
	return nil
}

// SoftDelete flags a photo deleted while keeping the collection invariants
func (s *Photos) SoftDelete(_ context.Context, ownerID models.UserID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok || p.IsDeleted || p.OwnerID != ownerID {
		return fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
	}
	if err := models.CheckPhotoDeletable(p.IsProfile, len(s.liveLocked(ownerID))); err != nil {
		return err
	}
	p.IsDeleted = true
	return nil
}

func (s *Photos) liveLocked(ownerID models.UserID) []*models.Photo {
	var live []*models.Photo
	for _, p := range s.photos {
		if p.OwnerID == ownerID && !p.IsDeleted {
			live = append(live, p)
		}
	}
	return live
}

// Permissions keeps the photo permission ledger
type Permissions struct {
	mu    sync.Mutex
	byID  map[string]*models.PermissionRequest
	byKey map[permissionKey]string
}

type permissionKey struct {
	photoID     string
	requesterID models.UserID
}

// NewPermissions creates an empty ledger
func NewPermissions() *Permissions {
	return &Permissions{
		byID:  make(map[string]*models.PermissionRequest),
		byKey: make(map[permissionKey]string),
	}
}

// UpsertPending inserts a pending request or reopens a rejected or lapsed one
func (s *Permissions) UpsertPending(_ context.Context, req *models.PermissionRequest) (*models.PermissionRequest, models.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := permissionKey{photoID: req.PhotoID, requesterID: req.RequesterID}
	if id, ok := s.byKey[key]; ok {
		existing := s.byID[id]
		lapsed := existing.Status == models.PermissionApproved && !existing.Grants(req.CreatedAt)
		if existing.Status != models.PermissionRejected && !lapsed {
			return clonePermission(existing), models.UpsertExisting, nil
		}
		existing.Status = models.PermissionPending
		existing.Message = req.Message
		existing.ResponseMessage = ""
		existing.CreatedAt = req.CreatedAt
		existing.RespondedAt = nil
		existing.ExpiresAt = nil
		return clonePermission(existing), models.UpsertReopened, nil
	}

	p := clonePermission(req)
	p.Status = models.PermissionPending
	s.byID[p.ID] = p
	s.byKey[key] = p.ID
	return clonePermission(p), models.UpsertCreated, nil
}

// UpsertApproved writes an approved grant whatever the prior state
func (s *Permissions) UpsertApproved(_ context.Context, req *models.PermissionRequest) (*models.PermissionRequest, models.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := permissionKey{photoID: req.PhotoID, requesterID: req.RequesterID}
	if id, ok := s.byKey[key]; ok {
		existing := s.byID[id]
		existing.Status = models.PermissionApproved
		existing.ResponseMessage = req.ResponseMessage
		existing.RespondedAt = req.RespondedAt
		existing.ExpiresAt = req.ExpiresAt
		return clonePermission(existing), models.UpsertExisting, nil
	}

	p := clonePermission(req)
	p.Status = models.PermissionApproved
	s.byID[p.ID] = p
	s.byKey[key] = p.ID
	return clonePermission(p), models.UpsertCreated, nil
}

// GetByID retrieves a permission request by ID
func (s *Permissions) GetByID(_ context.Context, id string) (*models.PermissionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", id, models.ErrNotFound)
	}
	return clonePermission(p), nil
}

// GetByPhotoAndRequester retrieves the ledger entry for a (photo, requester) pair
func (s *Permissions) GetByPhotoAndRequester(_ context.Context, photoID string, requesterID models.UserID) (*models.PermissionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[permissionKey{photoID: photoID, requesterID: requesterID}]
	if !ok {
		return nil, fmt.Errorf("permission for photo %s: %w", photoID, models.ErrNotFound)
	}
	return clonePermission(s.byID[id]), nil
}

// Transition moves a record from one status to another if it is still in from
func (s *Permissions) Transition(_ context.Context, id string, from, to models.PermissionStatus, responseMessage string, at time.Time, expiresAt *time.Time) (*models.PermissionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", id, models.ErrNotFound)
	}
	if p.Status != from {
		return nil, &models.InvalidStateError{
			Reason:  fmt.Sprintf("permission is not %s", from),
			Current: string(p.Status),
		}
	}
	p.Status = to
	p.ResponseMessage = responseMessage
	respondedAt := at
	p.RespondedAt = &respondedAt
	p.ExpiresAt = expiresAt
	return clonePermission(p), nil
}

// ListByOwner lists requests for the owner's photos, optionally filtered by status
func (s *Permissions) ListByOwner(_ context.Context, ownerID models.UserID, status models.PermissionStatus) ([]*models.PermissionRequest, error) {
	return s.filter(func(p *models.PermissionRequest) bool {
		return p.OwnerID == ownerID && (status == "" || p.Status == status)
	}), nil
}

// ListByRequester lists requests made by the requester
func (s *Permissions) ListByRequester(_ context.Context, requesterID models.UserID) ([]*models.PermissionRequest, error) {
	return s.filter(func(p *models.PermissionRequest) bool {
		return p.RequesterID == requesterID
	}), nil
}

// ListApprovedForViewer lists approved grants a viewer holds on an owner's photos
func (s *Permissions) ListApprovedForViewer(_ context.Context, ownerID, viewerID models.UserID) ([]*models.PermissionRequest, error) {
	return s.filter(func(p *models.PermissionRequest) bool {
		return p.OwnerID == ownerID && p.RequesterID == viewerID && p.Status == models.PermissionApproved
	}), nil
}

func (s *Permissions) filter(keep func(*models.PermissionRequest) bool) []*models.PermissionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PermissionRequest
	for _, p := range s.byID {
		if keep(p) {
			out = append(out, clonePermission(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func clonePermission(p *models.PermissionRequest) *models.PermissionRequest {
	c := *p
	if p.RespondedAt != nil {
		t := *p.RespondedAt
		c.RespondedAt = &t
	}
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
