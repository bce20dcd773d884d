package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interaction-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LikeRepository handles database operations for likes and like quotas
type LikeRepository struct {
	db *pgxpool.Pool
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *pgxpool.Pool) *LikeRepository {
	return &LikeRepository{db: db}
}

// Create inserts a like and, when consumeQuota is set, decrements the sender's
// daily allowance in the same transaction. Either both happen or neither does.
func (r *LikeRepository) Create(ctx context.Context, like *models.Like, consumeQuota bool) (*models.LikeResult, error) {
	result := &models.LikeResult{Like: like}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM likes WHERE sender_id = $1 AND recipient_id = $2)`,
			like.SenderID, like.RecipientID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check like: %w", err)
		}
		if exists {
			return models.ErrAlreadyExists
		}

		if consumeQuota {
			remaining, err := decrementQuota(ctx, tx, like.SenderID)
			if err != nil {
				return err
			}
			result.LikesRemaining = &remaining
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO likes (id, sender_id, recipient_id, message, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sender_id, recipient_id) DO NOTHING
		`, like.ID, like.SenderID, like.RecipientID, like.Message, like.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// lost a race with an identical like; rolling back restores the quota
			return models.ErrAlreadyExists
		}

		err = tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM likes WHERE sender_id = $1 AND recipient_id = $2)`,
			like.RecipientID, like.SenderID,
		).Scan(&result.IsMatch)
		if err != nil {
			return fmt.Errorf("failed to check match: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decrementQuota consumes one like only if the allowance is positive
func decrementQuota(ctx context.Context, tx pgx.Tx, userID models.UserID) (int, error) {
	var remaining int
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET daily_likes_remaining = daily_likes_remaining - 1
		WHERE id = $1 AND daily_likes_remaining > 0
		RETURNING daily_likes_remaining
	`, userID).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to decrement like quota: %w", err)
	}

	var resetAt time.Time
	err = tx.QueryRow(ctx, `SELECT likes_reset_at FROM users WHERE id = $1`, userID).Scan(&resetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to read like quota: %w", err)
	}
	return 0, &models.QuotaExceededError{ResetAt: resetAt}
}

// Delete removes the sender -> recipient like
func (r *LikeRepository) Delete(ctx context.Context, senderID, recipientID models.UserID) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM likes WHERE sender_id = $1 AND recipient_id = $2`,
		senderID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("like: %w", models.ErrNotFound)
	}
	return nil
}

// ListReceived lists likes sent to the user
func (r *LikeRepository) ListReceived(ctx context.Context, userID models.UserID) ([]*models.Like, error) {
	return r.list(ctx, `
		SELECT id, sender_id, recipient_id, message, created_at
		FROM likes WHERE recipient_id = $1
		ORDER BY created_at DESC
	`, userID)
}

// ListSent lists likes sent by the user
func (r *LikeRepository) ListSent(ctx context.Context, userID models.UserID) ([]*models.Like, error) {
	return r.list(ctx, `
		SELECT id, sender_id, recipient_id, message, created_at
		FROM likes WHERE sender_id = $1
		ORDER BY created_at DESC
	`, userID)
}

// ListMatches lists the user's likes that are reciprocated
func (r *LikeRepository) ListMatches(ctx context.Context, userID models.UserID) ([]*models.Like, error) {
	return r.list(ctx, `
		SELECT l.id, l.sender_id, l.recipient_id, l.message, l.created_at
		FROM likes l
		WHERE l.sender_id = $1
			AND EXISTS (SELECT 1 FROM likes b WHERE b.sender_id = l.recipient_id AND b.recipient_id = l.sender_id)
		ORDER BY l.created_at DESC
	`, userID)
}

func (r *LikeRepository) list(ctx context.Context, query string, args ...any) ([]*models.Like, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list likes: %w", err)
	}
	defer rows.Close()

	var likes []*models.Like
	for rows.Next() {
		var l models.Like
		if err := rows.Scan(&l.ID, &l.SenderID, &l.RecipientID, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan like: %w", err)
		}
		likes = append(likes, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating likes: %w", err)
	}
	return likes, nil
}
