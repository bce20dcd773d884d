package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NatsPublisher republishes events on <prefix>.<event> for other services
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNatsPublisher creates a publisher on an open connection
func NewNatsPublisher(nc *nats.Conn, prefix string) *NatsPublisher {
	return &NatsPublisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event is published on
func (p *NatsPublisher) Subject(event Event) string {
	if p.prefix == "" {
		return string(event)
	}
	return p.prefix + "." + string(event)
}

// Name implements Sink
func (p *NatsPublisher) Name() string { return "nats" }

// Deliver implements Sink
func (p *NatsPublisher) Deliver(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.Subject(env.Event),
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	return nil
}
