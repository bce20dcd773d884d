package notify

import (
	"context"
	"fmt"

	"interaction-backend/internal/config"
	"interaction-backend/internal/models"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// TokenSource looks up the push token of a user
type TokenSource interface {
	GetByID(ctx context.Context, id models.UserID) (*models.User, error)
}

// APNsPusher sends an alert for events addressed to users with a push token
type APNsPusher struct {
	client *apns2.Client
	topic  string
	users  TokenSource
}

// NewAPNsPusher creates a token-authenticated APNs client
func NewAPNsPusher(cfg config.APNsConfig, users TokenSource) (*APNsPusher, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsPusher{client: client, topic: cfg.Topic, users: users}, nil
}

// Name implements Sink
func (p *APNsPusher) Name() string { return "apns" }

// Deliver implements Sink. Users without a push token are skipped.
func (p *APNsPusher) Deliver(ctx context.Context, env Envelope) error {
	user, err := p.users.GetByID(ctx, env.Target)
	if err != nil {
		return fmt.Errorf("failed to get push token: %w", err)
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return nil
	}

	n := &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       p.topic,
		Payload:     buildPayload(env),
	}
	res, err := p.client.PushWithContext(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

func buildPayload(env Envelope) *payload.Payload {
	p := payload.NewPayload().
		AlertBody(alertText(env.Event)).
		Sound("default").
		Custom("event", string(env.Event))
	if env.Event == EventMessageNew {
		p = p.ThreadID("messages")
	}
	return p
}

func alertText(event Event) string {
	switch event {
	case EventPermissionRequested:
		return "Someone asked to see one of your photos"
	case EventPermissionResponded:
		return "Your photo request was answered"
	case EventPermissionRevoked:
		return "A photo is no longer shared with you"
	case EventLikeReceived:
		return "Someone liked you"
	case EventMatchCreated:
		return "It's a match!"
	case EventMessageNew:
		return "New message"
	case EventMessageReaction:
		return "Someone reacted to your message"
	case EventMessageDeleted:
		return "A message was deleted"
	default:
		return "New activity"
	}
}
