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

const messageColumns = `id, sender_id, recipient_id, type, content, metadata, created_at,
	is_read, read_at, deleted_by_sender, deleted_by_recipient`

// MessageRepository handles database operations for messages and reactions
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a new message
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, type, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var metadata []byte
	if len(msg.Metadata) > 0 {
		metadata = msg.Metadata
	}
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.RecipientID, msg.Type, msg.Content, metadata, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message with its reactions
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if err := r.attachReactions(ctx, []*models.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListConversation returns the messages between viewer and peer that the viewer
// has not deleted, newest first. A zero before starts from the latest message.
func (r *MessageRepository) ListConversation(ctx context.Context, viewerID, peerID models.UserID, before time.Time, limit int) ([]*models.Message, error) {
	var cursor *time.Time
	if !before.IsZero() {
		cursor = &before
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = $1 AND recipient_id = $2 AND NOT deleted_by_sender)
			OR (sender_id = $2 AND recipient_id = $1 AND NOT deleted_by_recipient))
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4
	`
	rows, err := r.db.Query(ctx, query, viewerID, peerID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	if err := r.attachReactions(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flags one message read. It reports false if it was already read.
func (r *MessageRepository) MarkRead(ctx context.Context, id string, recipientID models.UserID, at time.Time) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $3
		WHERE id = $1 AND recipient_id = $2 AND NOT is_read
	`, id, recipientID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark message read: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkConversationRead flags every unread message from sender to recipient read
func (r *MessageRepository) MarkConversationRead(ctx context.Context, recipientID, senderID models.UserID, at time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $3
		WHERE recipient_id = $1 AND sender_id = $2 AND NOT is_read AND NOT deleted_by_recipient
	`, recipientID, senderID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountUnread counts unread messages per sender for a recipient
func (r *MessageRepository) CountUnread(ctx context.Context, recipientID models.UserID) (map[models.UserID]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE recipient_id = $1 AND NOT is_read AND NOT deleted_by_recipient
		GROUP BY sender_id
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.UserID]int64)
	for rows.Next() {
		var sender models.UserID
		var n int64
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[sender] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread counts: %w", err)
	}
	return counts, nil
}

// UpsertReaction sets the user's single reaction on a message, replacing any previous one
func (r *MessageRepository) UpsertReaction(ctx context.Context, messageID string, reaction models.Reaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id) DO UPDATE
		SET emoji = EXCLUDED.emoji, created_at = EXCLUDED.created_at
	`, messageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to save reaction: %w", err)
	}
	return nil
}

// DeleteReaction removes the user's reaction from a message
func (r *MessageRepository) DeleteReaction(ctx context.Context, messageID string, userID models.UserID) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("reaction: %w", models.ErrNotFound)
	}
	return nil
}

// DeleteForParty sets the party's deletion flag and physically removes the
// message once both flags are set. The flag flip holds the row lock until
// commit, so exactly one of two concurrent parties performs the removal.
func (r *MessageRepository) DeleteForParty(ctx context.Context, id string, userID models.UserID) (bool, error) {
	var removed bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var both bool
		err := tx.QueryRow(ctx, `
			UPDATE messages
			SET deleted_by_sender = deleted_by_sender OR sender_id = $2,
				deleted_by_recipient = deleted_by_recipient OR recipient_id = $2
			WHERE id = $1 AND (sender_id = $2 OR recipient_id = $2)
			RETURNING deleted_by_sender AND deleted_by_recipient
		`, id, userID).Scan(&both)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("message %s: %w", id, models.ErrNotFound)
			}
			return fmt.Errorf("failed to flag message deleted: %w", err)
		}
		if !both {
			return nil
		}

		result, err := tx.Exec(ctx,
			`DELETE FROM messages WHERE id = $1 AND deleted_by_sender AND deleted_by_recipient`, id)
		if err != nil {
			return fmt.Errorf("failed to remove message: %w", err)
		}
		removed = result.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Remove physically deletes a message and returns the removed row
func (r *MessageRepository) Remove(ctx context.Context, id string) (*models.Message, error) {
	query := `DELETE FROM messages WHERE id = $1 RETURNING ` + messageColumns
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to remove message: %w", err)
	}
	return msg, nil
}

// attachReactions loads reactions for a batch of messages in one query
func (r *MessageRepository) attachReactions(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]string, len(messages))
	byID := make(map[string]*models.Message, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
		m.Reactions = []models.Reaction{}
		byID[m.ID] = m
	}

	rows, err := r.db.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to get reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var reaction models.Reaction
		if err := rows.Scan(&messageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan reaction: %w", err)
		}
		if m, ok := byID[messageID]; ok {
			m.Reactions = append(m.Reactions, reaction)
		}
	}
	return rows.Err()
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var metadata []byte
	err := row.Scan(
		&m.ID, &m.SenderID, &m.RecipientID, &m.Type, &m.Content, &metadata, &m.CreatedAt,
		&m.IsRead, &m.ReadAt, &m.DeletedBySender, &m.DeletedByRecipient,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		m.Metadata = metadata
	}
	m.Reactions = []models.Reaction{}
	return &m, nil
}
