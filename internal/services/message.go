package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"interaction-backend/internal/models"
	"interaction-backend/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxHistoryLimit = 100

var (
	placeholders = map[models.MessageType]string{
		models.MessageWink:      "😉",
		models.MessageVideoCall: "📹 Video call",
		models.MessageFile:      "📎 File",
	}
	angleBrackets = strings.NewReplacer("<", "", ">", "")
)

// MessageLimits bounds message input
type MessageLimits struct {
	MaxLength      int
	MaxEmojiLength int
	PageSize       int
}

// MessageService runs the message lifecycle
type MessageService struct {
	users    UserStore
	messages MessageStore
	blobs    BlobStore
	unread   UnreadCache
	notifier Notifier
	limits   MessageLimits
	now      func() time.Time
}

// NewMessageService creates a new message service. unread may be nil.
func NewMessageService(users UserStore, messages MessageStore, blobs BlobStore, unread UnreadCache, notifier Notifier, limits MessageLimits) *MessageService {
	return &MessageService{
		users:    users,
		messages: messages,
		blobs:    blobs,
		unread:   unread,
		notifier: notifier,
		limits:   limits,
		now:      time.Now,
	}
}

// SendRequest is a message about to be sent
type SendRequest struct {
	RecipientID models.UserID
	Type        models.MessageType
	Content     string
	Metadata    json.RawMessage
}

// Send validates and stores a message, then notifies the recipient
func (s *MessageService) Send(ctx context.Context, senderID models.UserID, req SendRequest) (*models.Message, error) {
	if senderID == req.RecipientID {
		return nil, models.ErrSelfReference
	}
	if !req.Type.Valid() {
		return nil, models.ErrInvalidType
	}

	content, err := s.content(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", req.RecipientID, models.ErrNotFound)
	}

	msg := &models.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Content:     content,
		Metadata:    req.Metadata,
		CreatedAt:   s.now(),
		Reactions:   []models.Reaction{},
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.unread != nil {
		if err := s.unread.Incr(ctx, msg.RecipientID, msg.SenderID); err != nil {
			log.Warn().Err(err).Str("user_id", msg.RecipientID.String()).Msg("Failed to bump unread count")
		}
	}
	s.notifier.Publish(ctx, notify.EventMessageNew, msg.RecipientID, msg)
	return msg, nil
}

// content derives the stored content for a message
func (s *MessageService) content(req SendRequest) (string, error) {
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return "", &models.ValidationError{Field: "metadata", Reason: "must be valid JSON"}
	}

	switch req.Type {
	case models.MessageText:
		content := sanitizeText(req.Content)
		if content == "" {
			return "", &models.ValidationError{Field: "content", Reason: "is required"}
		}
		if utf8.RuneCountInString(content) > s.limits.MaxLength {
			return "", &models.ValidationError{
				Field:  "content",
				Reason: fmt.Sprintf("must be at most %d characters", s.limits.MaxLength),
			}
		}
		return content, nil
	case models.MessageFile:
		var meta models.FileMetadata
		if len(req.Metadata) == 0 || json.Unmarshal(req.Metadata, &meta) != nil {
			return "", &models.ValidationError{Field: "metadata", Reason: "is required for file messages"}
		}
		if strings.TrimSpace(meta.FileKey) == "" {
			return "", &models.ValidationError{Field: "metadata.file_key", Reason: "is required"}
		}
		if strings.TrimSpace(meta.FileName) == "" {
			return "", &models.ValidationError{Field: "metadata.file_name", Reason: "is required"}
		}
	}
	return placeholders[req.Type], nil
}

// History returns a page of the conversation, newest first, and marks the
// peer's messages read. A failed mark is logged and does not fail the fetch.
func (s *MessageService) History(ctx context.Context, viewerID, peerID models.UserID, before time.Time, limit int) ([]*models.Message, error) {
	if viewerID == peerID {
		return nil, models.ErrSelfReference
	}
	if limit <= 0 {
		limit = s.limits.PageSize
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.messages.ListConversation(ctx, viewerID, peerID, before, limit)
	if err != nil {
		return nil, err
	}

	for _, m := range messages {
		if m.RecipientID == viewerID && !m.IsRead {
			if _, err := s.markConversationRead(ctx, viewerID, peerID); err != nil {
				log.Warn().
					Err(err).
					Str("user_id", viewerID.String()).
					Str("peer_id", peerID.String()).
					Msg("Failed to mark conversation read")
			}
			break
		}
	}
	return messages, nil
}

// MarkRead marks one message read. Only the recipient may do this; repeating it is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, userID models.UserID, messageID string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != userID {
		return nil, models.ErrForbidden
	}
	if msg.IsRead {
		return msg, nil
	}

	now := s.now()
	changed, err := s.messages.MarkRead(ctx, messageID, userID, now)
	if err != nil {
		return nil, err
	}
	if changed {
		msg.IsRead = true
		msg.ReadAt = &now
		s.invalidateUnread(ctx, userID)
	}
	return msg, nil
}

// MarkConversationRead marks every unread message from peer to the user read
func (s *MessageService) MarkConversationRead(ctx context.Context, userID, peerID models.UserID) (int64, error) {
	if userID == peerID {
		return 0, models.ErrSelfReference
	}
	return s.markConversationRead(ctx, userID, peerID)
}

func (s *MessageService) markConversationRead(ctx context.Context, userID, peerID models.UserID) (int64, error) {
	n, err := s.messages.MarkConversationRead(ctx, userID, peerID, s.now())
	if err != nil {
		return 0, err
	}
	if s.unread != nil {
		if err := s.unread.Reset(ctx, userID, peerID); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to reset unread count")
		}
	}
	return n, nil
}

// UnreadCounts returns unread counts per peer, from cache when possible
func (s *MessageService) UnreadCounts(ctx context.Context, userID models.UserID) (map[models.UserID]int64, error) {
	if s.unread != nil {
		counts, ok, err := s.unread.Get(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Unread cache read failed")
		} else if ok {
			return counts, nil
		}
	}

	counts, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.unread != nil {
		if err := s.unread.Put(ctx, userID, counts); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to fill unread cache")
		}
	}
	return counts, nil
}

// AddReaction sets the user's reaction on a message, replacing any previous one
func (s *MessageService) AddReaction(ctx context.Context, userID models.UserID, messageID, emoji string) (*models.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, &models.ValidationError{Field: "emoji", Reason: "is required"}
	}
	if utf8.RuneCountInString(emoji) > s.limits.MaxEmojiLength {
		return nil, &models.ValidationError{
			Field:  "emoji",
			Reason: fmt.Sprintf("must be at most %d characters", s.limits.MaxEmojiLength),
		}
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(userID) {
		return nil, models.ErrForbidden
	}

	reaction := models.Reaction{UserID: userID, Emoji: emoji, CreatedAt: s.now()}
	if err := s.messages.UpsertReaction(ctx, messageID, reaction); err != nil {
		return nil, err
	}

	updated, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(ctx, notify.EventMessageReaction, msg.Counterpart(userID), reactionEvent{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	return updated, nil
}

// RemoveReaction removes the user's own reaction
func (s *MessageService) RemoveReaction(ctx context.Context, userID models.UserID, messageID string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(userID) {
		return nil, models.ErrForbidden
	}
	if err := s.messages.DeleteReaction(ctx, messageID, userID); err != nil {
		return nil, err
	}

	updated, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(ctx, notify.EventMessageReaction, msg.Counterpart(userID), reactionEvent{
		MessageID: messageID,
		UserID:    userID,
		Removed:   true,
	})
	return updated, nil
}

type reactionEvent struct {
	MessageID string        `json:"message_id"`
	UserID    models.UserID `json:"user_id"`
	Emoji     string        `json:"emoji,omitempty"`
	Removed   bool          `json:"removed,omitempty"`
}

// Delete hides a message for the user (self) or removes it for both parties (both,
// sender only). A message hidden by both parties is removed.
func (s *MessageService) Delete(ctx context.Context, userID models.UserID, messageID string, mode models.DeleteMode) (*models.DeleteResult, error) {
	if mode == "" {
		mode = models.DeleteForSelf
	}
	if mode != models.DeleteForSelf && mode != models.DeleteForBoth {
		return nil, &models.ValidationError{Field: "mode", Reason: "must be self or both"}
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(userID) {
		return nil, models.ErrForbidden
	}

	if mode == models.DeleteForBoth {
		if msg.SenderID != userID {
			return nil, models.ErrForbidden
		}
		removed, err := s.messages.Remove(ctx, messageID)
		if err != nil {
			return nil, err
		}
		s.deleteFiles(ctx, removed)
		if !removed.IsRead {
			s.invalidateUnread(ctx, removed.RecipientID)
		}
		s.notifier.Publish(ctx, notify.EventMessageDeleted, removed.RecipientID, &models.DeleteResult{
			MessageID: messageID,
			Removed:   true,
		})
		return &models.DeleteResult{MessageID: messageID, Removed: true}, nil
	}

	removed, err := s.messages.DeleteForParty(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID == userID && !msg.IsRead {
		s.invalidateUnread(ctx, userID)
	}
	if removed {
		s.deleteFiles(ctx, msg)
	}
	return &models.DeleteResult{MessageID: messageID, Removed: removed}, nil
}

// deleteFiles removes the stored file and thumbnail of a removed file message.
// Failures are logged; the message is already gone.
func (s *MessageService) deleteFiles(ctx context.Context, msg *models.Message) {
	if msg.Type != models.MessageFile || len(msg.Metadata) == 0 {
		return
	}
	var meta models.FileMetadata
	if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("Unreadable file metadata")
		return
	}
	if err := s.blobs.Delete(ctx, meta.FileKey, meta.ThumbnailKey); err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to delete message files")
	}
}

func (s *MessageService) invalidateUnread(ctx context.Context, userID models.UserID) {
	if s.unread == nil {
		return
	}
	if err := s.unread.Invalidate(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to invalidate unread counts")
	}
}

func sanitizeText(content string) string {
	return strings.TrimSpace(angleBrackets.Replace(content))
}
