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
)

const maxLikeMessageLength = 280

// LikeService runs likes, the daily quota and match detection
type LikeService struct {
	users    UserStore
	likes    LikeStore
	notifier Notifier
	now      func() time.Time
}

// NewLikeService creates a new like service
func NewLikeService(users UserStore, likes LikeStore, notifier Notifier) *LikeService {
	return &LikeService{
		users:    users,
		likes:    likes,
		notifier: notifier,
		now:      time.Now,
	}
}

// Like records interest in recipient. Free-tier senders spend one unit of their
// daily quota in the same atomic store operation that creates the like.
func (s *LikeService) Like(ctx context.Context, senderID, recipientID models.UserID, message string) (*models.LikeResult, error) {
	if senderID == recipientID {
		return nil, models.ErrSelfReference
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > maxLikeMessageLength {
		return nil, &models.ValidationError{Field: "message", Reason: "is too long"}
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", recipientID, models.ErrNotFound)
	}

	like := &models.Like{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Message:     message,
		CreatedAt:   s.now(),
	}
	result, err := s.likes.Create(ctx, like, !sender.Tier.Privileged())
	if err != nil {
		return nil, err
	}

	event := notify.EventLikeReceived
	if result.IsMatch {
		event = notify.EventMatchCreated
	}
	s.notifier.Publish(ctx, event, recipientID, like)
	return result, nil
}

// Unlike removes the like. Spent quota is not given back.
func (s *LikeService) Unlike(ctx context.Context, senderID, recipientID models.UserID) error {
	if senderID == recipientID {
		return models.ErrSelfReference
	}
	return s.likes.Delete(ctx, senderID, recipientID)
}

// ListReceived lists likes the user has received
func (s *LikeService) ListReceived(ctx context.Context, userID models.UserID) ([]*models.Like, error) {
	return s.likes.ListReceived(ctx, userID)
}

// ListSent lists likes the user has sent
func (s *LikeService) ListSent(ctx context.Context, userID models.UserID) ([]*models.Like, error) {
	return s.likes.ListSent(ctx, userID)
}

// ListMatches lists the user's reciprocated likes
func (s *LikeService) ListMatches(ctx context.Context, userID models.UserID) ([]*models.Like, error) {
	return s.likes.ListMatches(ctx, userID)
}

// Quota reports the user's like allowance
func (s *LikeService) Quota(ctx context.Context, userID models.UserID) (*models.QuotaStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaStatus{
		Tier:           user.Tier,
		Unlimited:      user.Tier.Privileged(),
		LikesRemaining: user.DailyLikesRemaining,
		ResetAt:        user.LikesResetAt,
	}, nil
}
