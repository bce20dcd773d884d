package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserID is a validated user identity. It is constructed once at the request
// boundary and trusted everywhere below.
type UserID string

// ParseUserID validates a raw identity and returns its canonical form
func ParseUserID(raw string) (UserID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "user_id", Reason: "is required"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "user_id", Reason: "must be a valid uuid"}
	}
	return UserID(id.String()), nil
}

// NewUserID generates a fresh identity
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

func (id UserID) String() string {
	return string(id)
}

// AccountTier decides whether like quotas apply
type AccountTier string

const (
	TierFree    AccountTier = "free"
	TierPremium AccountTier = "premium"
)

// Privileged reports whether the tier bypasses the daily like quota
func (t AccountTier) Privileged() bool {
	return t == TierPremium
}

// User is the slice of a user record this service reads
type User struct {
	ID                  UserID      `json:"id"`
	Tier                AccountTier `json:"tier"`
	DailyLikesRemaining int         `json:"daily_likes_remaining"`
	LikesResetAt        time.Time   `json:"likes_reset_at"`
	PushToken           *string     `json:"push_token,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}

// Visibility is the tier controlling default access to a photo
type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilityPrivate     Visibility = "private"
	VisibilityFriendsOnly Visibility = "friends_only"
)

// Valid reports whether v is a known tier
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityFriendsOnly:
		return true
	}
	return false
}

// PhotoMetadata describes the stored binary
type PhotoMetadata struct {
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Photo represents a photo owned by a user
type Photo struct {
	ID         string        `json:"id"`
	OwnerID    UserID        `json:"owner_id"`
	StorageKey string        `json:"-"`
	URL        string        `json:"url"`
	Visibility Visibility    `json:"visibility"`
	IsProfile  bool          `json:"is_profile"`
	IsDeleted  bool          `json:"-"`
	Metadata   PhotoMetadata `json:"metadata"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// VisiblePhoto is a photo as seen by a particular viewer
type VisiblePhoto struct {
	Photo
	HasPermission bool `json:"has_permission"`
}

// CheckPhotoDeletable enforces the collection invariants for a soft delete:
// an owner keeps at least one live photo, and the profile photo must be
// reassigned before it can go.
func CheckPhotoDeletable(isProfile bool, livePhotos int) error {
	if livePhotos <= 1 {
		return &InvalidStateError{Reason: "cannot delete the only photo"}
	}
	if isProfile {
		return &InvalidStateError{Reason: "reassign the profile photo before deleting it"}
	}
	return nil
}
