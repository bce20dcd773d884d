// Package notify delivers interaction events to the counterpart user.
// Delivery is fire-and-forget: callers never see adapter failures.
package notify

import (
	"context"
	"sync"
	"time"

	"interaction-backend/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Event names an outbound event kind
type Event string

const (
	EventPermissionRequested Event = "permission.requested"
	EventPermissionResponded Event = "permission.responded"
	EventPermissionRevoked   Event = "permission.revoked"
	EventLikeReceived        Event = "like.received"
	EventMatchCreated        Event = "match.created"
	EventMessageNew          Event = "message.new"
	EventMessageReaction     Event = "message.reaction"
	EventMessageDeleted      Event = "message.deleted"
)

// Envelope is the unit every sink delivers
type Envelope struct {
	Event     Event         `json:"type"`
	Target    models.UserID `json:"target"`
	Payload   any           `json:"data,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Sink is one delivery channel
type Sink interface {
	Name() string
	Deliver(ctx context.Context, env Envelope) error
}

// Dispatcher fans events out to every sink in the background
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Each publish gets its own timeout.
func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: timeout}
}

// Publish hands the event off and returns immediately. The request context
// only contributes its values; cancelling it does not abort delivery.
func (d *Dispatcher) Publish(ctx context.Context, event Event, target models.UserID, payload any) {
	if len(d.sinks) == 0 {
		return
	}
	env := Envelope{
		Event:     event,
		Target:    target,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.deliver(ctx, env)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) {
	var g errgroup.Group
	for _, sink := range d.sinks {
		g.Go(func() error {
			if err := sink.Deliver(ctx, env); err != nil {
				log.Error().
					Err(err).
					Str("sink", sink.Name()).
					Str("event", string(env.Event)).
					Str("user_id", env.Target.String()).
					Msg("Failed to deliver event")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Wait blocks until every in-flight publish has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
