package services

import (
	"context"
	"time"

	"interaction-backend/internal/models"
	"interaction-backend/internal/notify"
	"interaction-backend/internal/storage"
)

// UserStore reads user records. Accounts are provisioned elsewhere.
type UserStore interface {
	GetByID(ctx context.Context, id models.UserID) (*models.User, error)
	Exists(ctx context.Context, id models.UserID) (bool, error)
	UpdatePushToken(ctx context.Context, id models.UserID, pushToken *string) error
}

// PhotoStore persists photos and enforces the per-owner collection invariants
type PhotoStore interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	ListByOwner(ctx context.Context, ownerID models.UserID) ([]*models.Photo, error)
	UpdateVisibility(ctx context.Context, id string, visibility models.Visibility) (*models.Photo, error)
	SetProfile(ctx context.Context, ownerID models.UserID, id string) error
	SoftDelete(ctx context.Context, ownerID models.UserID, id string) error
}

// PermissionStore is the permission ledger. Every write is a single conditional operation.
type PermissionStore interface {
	UpsertPending(ctx context.Context, req *models.PermissionRequest) (*models.PermissionRequest, models.UpsertOutcome, error)
	UpsertApproved(ctx context.Context, req *models.PermissionRequest) (*models.PermissionRequest, models.UpsertOutcome, error)
	GetByID(ctx context.Context, id string) (*models.PermissionRequest, error)
	GetByPhotoAndRequester(ctx context.Context, photoID string, requesterID models.UserID) (*models.PermissionRequest, error)
	Transition(ctx context.Context, id string, from, to models.PermissionStatus, responseMessage string, at time.Time, expiresAt *time.Time) (*models.PermissionRequest, error)
	ListByOwner(ctx context.Context, ownerID models.UserID, status models.PermissionStatus) ([]*models.PermissionRequest, error)
	ListByRequester(ctx context.Context, requesterID models.UserID) ([]*models.PermissionRequest, error)
	ListApprovedForViewer(ctx context.Context, ownerID, viewerID models.UserID) ([]*models.PermissionRequest, error)
}

// LikeStore persists likes. Create couples the insert with the quota decrement.
type LikeStore interface {
	Create(ctx context.Context, like *models.Like, consumeQuota bool) (*models.LikeResult, error)
	Delete(ctx context.Context, senderID, recipientID models.UserID) error
	ListReceived(ctx context.Context, userID models.UserID) ([]*models.Like, error)
	ListSent(ctx context.Context, userID models.UserID) ([]*models.Like, error)
	ListMatches(ctx context.Context, userID models.UserID) ([]*models.Like, error)
}

// MessageStore persists messages and reactions
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListConversation(ctx context.Context, viewerID, peerID models.UserID, before time.Time, limit int) ([]*models.Message, error)
	MarkRead(ctx context.Context, id string, recipientID models.UserID, at time.Time) (bool, error)
	MarkConversationRead(ctx context.Context, recipientID, senderID models.UserID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID models.UserID) (map[models.UserID]int64, error)
	UpsertReaction(ctx context.Context, messageID string, reaction models.Reaction) error
	DeleteReaction(ctx context.Context, messageID string, userID models.UserID) error
	DeleteForParty(ctx context.Context, id string, userID models.UserID) (bool, error)
	Remove(ctx context.Context, id string) (*models.Message, error)
}

// BlobStore holds uploaded binaries
type BlobStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (*storage.PresignedUpload, error)
	Delete(ctx context.Context, keys ...string) error
}

// UnreadCache caches unread counts per conversation peer. A nil cache is allowed.
type UnreadCache interface {
	Get(ctx context.Context, userID models.UserID) (map[models.UserID]int64, bool, error)
	Put(ctx context.Context, userID models.UserID, counts map[models.UserID]int64) error
	Incr(ctx context.Context, userID, peerID models.UserID) error
	Reset(ctx context.Context, userID, peerID models.UserID) error
	Invalidate(ctx context.Context, userID models.UserID) error
}

// Notifier hands an event to the counterpart. It never reports failure.
type Notifier interface {
	Publish(ctx context.Context, event notify.Event, target models.UserID, payload any)
}
