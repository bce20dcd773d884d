package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"interaction-backend/internal/models"
)

type likeKey struct {
	sender    models.UserID
	recipient models.UserID
}

// Likes keeps the directed like graph. Quota consumption goes through the
// shared Users store; locks are always taken likes first, then users.
type Likes struct {
	mu    sync.Mutex
	users *Users
	likes map[likeKey]*models.Like
}

// NewLikes creates an empty like store drawing quota from users
func NewLikes(users *Users) *Likes {
	return &Likes{users: users, likes: make(map[likeKey]*models.Like)}
}

// Create inserts a like and optionally consumes one unit of the sender's quota
func (s *Likes) Create(_ context.Context, like *models.Like, consumeQuota bool) (*models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey{sender: like.SenderID, recipient: like.RecipientID}
	if _, ok := s.likes[key]; ok {
		return nil, models.ErrAlreadyExists
	}

	result := &models.LikeResult{Like: like}
	if consumeQuota {
		s.users.mu.Lock()
		remaining, err := s.users.decrementQuota(like.SenderID)
		s.users.mu.Unlock()
		if err != nil {
			return nil, err
		}
		result.LikesRemaining = &remaining
	}

	l := *like
	s.likes[key] = &l
	_, result.IsMatch = s.likes[likeKey{sender: like.RecipientID, recipient: like.SenderID}]
	return result, nil
}

// Delete removes the sender -> recipient like
func (s *Likes) Delete(_ context.Context, senderID, recipientID models.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := likeKey{sender: senderID, recipient: recipientID}
	if _, ok := s.likes[key]; !ok {
		return fmt.Errorf("like: %w", models.ErrNotFound)
	}
	delete(s.likes, key)
	return nil
}

// ListReceived lists likes sent to the user
func (s *Likes) ListReceived(_ context.Context, userID models.UserID) ([]*models.Like, error) {
	return s.filter(func(k likeKey) bool { return k.recipient == userID }), nil
}

// ListSent lists likes sent by the user
func (s *Likes) ListSent(_ context.Context, userID models.UserID) ([]*models.Like, error) {
	return s.filter(func(k likeKey) bool { return k.sender == userID }), nil
}

// ListMatches lists the user's likes that are reciprocated
func (s *Likes) ListMatches(_ context.Context, userID models.UserID) ([]*models.Like, error) {
	return s.filter(func(k likeKey) bool {
		if k.sender != userID {
			return false
		}
		_, back := s.likes[likeKey{sender: k.recipient, recipient: k.sender}]
		return back
	}), nil
}

func (s *Likes) filter(keep func(likeKey) bool) []*models.Like {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Like
	for k, l := range s.likes {
		if keep(k) {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Messages keeps messages and their reactions
type Messages struct {
	mu       sync.Mutex
	messages map[string]*models.Message
}

// NewMessages creates an empty message store
func NewMessages() *Messages {
	return &Messages{messages: make(map[string]*models.Message)}
}

// Create stores a new message
func (s *Messages) Create(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; ok {
		return fmt.Errorf("message %s: %w", msg.ID, models.ErrAlreadyExists)
	}
	s.messages[msg.ID] = cloneMessage(msg)
	return nil
}

// GetByID retrieves a message with its reactions
func (s *Messages) GetByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
	}
	return cloneMessage(m), nil
}

// ListConversation returns the viewer's visible messages with peer, newest first
func (s *Messages) ListConversation(_ context.Context, viewerID, peerID models.UserID, before time.Time, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.messages {
		outgoing := m.SenderID == viewerID && m.RecipientID == peerID && !m.DeletedBySender
		incoming := m.SenderID == peerID && m.RecipientID == viewerID && !m.DeletedByRecipient
		if !outgoing && !incoming {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead flags one message read. It reports false if it was already read.
func (s *Messages) MarkRead(_ context.Context, id string, recipientID models.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.RecipientID != recipientID || m.IsRead {
		return false, nil
	}
	markRead(m, at)
	return true, nil
}

// MarkConversationRead flags every unread message from sender to recipient read
func (s *Messages) MarkConversationRead(_ context.Context, recipientID, senderID models.UserID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.IsRead && !m.DeletedByRecipient {
			markRead(m, at)
			n++
		}
	}
	return n, nil
}

// CountUnread counts unread messages per sender for a recipient
func (s *Messages) CountUnread(_ context.Context, recipientID models.UserID) (map[models.UserID]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.UserID]int64)
	for _, m := range s.messages {
		if m.RecipientID == recipientID && !m.IsRead && !m.DeletedByRecipient {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

// UpsertReaction sets the user's single reaction on a message. A replaced
// reaction moves to the end, keeping reactions in created_at order.
func (s *Messages) UpsertReaction(_ context.Context, messageID string, reaction models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	kept := m.Reactions[:0]
	for _, r := range m.Reactions {
		if r.UserID != reaction.UserID {
			kept = append(kept, r)
		}
	}
	m.Reactions = append(kept, reaction)
	return nil
}

// DeleteReaction removes the user's reaction from a message
func (s *Messages) DeleteReaction(_ context.Context, messageID string, userID models.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if ok {
		for i := range m.Reactions {
			if m.Reactions[i].UserID == userID {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("reaction: %w", models.ErrNotFound)
}

// DeleteForParty sets the party's deletion flag and removes the message once both are set
func (s *Messages) DeleteForParty(_ context.Context, id string, userID models.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || !m.IsParticipant(userID) {
		return false, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
	}
	if m.SenderID == userID {
		m.DeletedBySender = true
	}
	if m.RecipientID == userID {
		m.DeletedByRecipient = true
	}
	if m.DeletedBySender && m.DeletedByRecipient {
		delete(s.messages, id)
		return true, nil
	}
	return false, nil
}

// Remove physically deletes a message and returns it
func (s *Messages) Remove(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
	}
	delete(s.messages, id)
	return m, nil
}

func markRead(m *models.Message, at time.Time) {
	readAt := at
	m.IsRead = true
	m.ReadAt = &readAt
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	if m.Metadata != nil {
		c.Metadata = append([]byte(nil), m.Metadata...)
	}
	c.Reactions = append([]models.Reaction{}, m.Reactions...)
	return &c
}
