package models

import (
	"encoding/json"
	"time"
)

// PermissionStatus is the lifecycle state of a permission request
type PermissionStatus string

const (
	PermissionPending  PermissionStatus = "pending"
	PermissionApproved PermissionStatus = "approved"
	PermissionRejected PermissionStatus = "rejected"
)

// PermissionRequest records one requester's access request to one private photo.
// OwnerID is denormalized from the photo.
type PermissionRequest struct {
	ID              string           `json:"id"`
	PhotoID         string           `json:"photo_id"`
	OwnerID         UserID           `json:"owner_id"`
	RequesterID     UserID           `json:"requester_id"`
	Status          PermissionStatus `json:"status"`
	Message         string           `json:"message,omitempty"`
	ResponseMessage string           `json:"response_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	RespondedAt     *time.Time       `json:"responded_at,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
}

// Grants reports whether the request currently grants access
func (p *PermissionRequest) Grants(now time.Time) bool {
	if p.Status != PermissionApproved {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// UpsertOutcome tells what a conditional permission upsert did
type UpsertOutcome string

const (
	UpsertCreated  UpsertOutcome = "created"
	UpsertReopened UpsertOutcome = "reopened"
	UpsertExisting UpsertOutcome = "existing"
)

// Like is a directed interest edge between two users
type Like struct {
	ID          string    `json:"id"`
	SenderID    UserID    `json:"sender_id"`
	RecipientID UserID    `json:"recipient_id"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LikeResult is the outcome of a successful like
type LikeResult struct {
	Like           *Like `json:"like"`
	IsMatch        bool  `json:"is_match"`
	LikesRemaining *int  `json:"likes_remaining,omitempty"`
}

// QuotaStatus is the like allowance of a user
type QuotaStatus struct {
	Tier           AccountTier `json:"tier"`
	Unlimited      bool        `json:"unlimited"`
	LikesRemaining int         `json:"likes_remaining"`
	ResetAt        time.Time   `json:"reset_at"`
}

// MessageType enumerates supported message kinds
type MessageType string

const (
	MessageText      MessageType = "text"
	MessageWink      MessageType = "wink"
	MessageVideoCall MessageType = "video_call"
	MessageFile      MessageType = "file"
)

// Valid reports whether t is supported
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageWink, MessageVideoCall, MessageFile:
		return true
	}
	return false
}

// DeleteMode selects how a message is deleted
type DeleteMode string

const (
	DeleteForSelf DeleteMode = "self"
	DeleteForBoth DeleteMode = "both"
)

// Reaction is one user's emoji on a message
type Reaction struct {
	UserID    UserID    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a directed message between two users
type Message struct {
	ID                 string          `json:"id"`
	SenderID           UserID          `json:"sender_id"`
	RecipientID        UserID          `json:"recipient_id"`
	Type               MessageType     `json:"type"`
	Content            string          `json:"content"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	IsRead             bool            `json:"is_read"`
	ReadAt             *time.Time      `json:"read_at,omitempty"`
	DeletedBySender    bool            `json:"-"`
	DeletedByRecipient bool            `json:"-"`
	Reactions          []Reaction      `json:"reactions"`
}

// IsParticipant reports whether user is the sender or recipient
func (m *Message) IsParticipant(user UserID) bool {
	return m.SenderID == user || m.RecipientID == user
}

// Counterpart returns the other party of the conversation
func (m *Message) Counterpart(user UserID) UserID {
	if m.SenderID == user {
		return m.RecipientID
	}
	return m.SenderID
}

// FileMetadata is the metadata required for file messages
type FileMetadata struct {
	FileKey      string `json:"file_key"`
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
}

// DeleteResult reports what a message deletion did
type DeleteResult struct {
	MessageID string `json:"message_id"`
	Removed   bool   `json:"removed"`
}
