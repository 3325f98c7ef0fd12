package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const originAttr = "origin"

// NewOrigin returns a fresh per-process instance id.
func NewOrigin() string {
	return uuid.NewString()
}

// PubSubBroadcaster publishes applied plans to a Pub/Sub topic.
type PubSubBroadcaster struct {
	topic   *pubsub.Topic
	origin  string
	marshal func(any) ([]byte, error)
}

// NewPubSubBroadcaster constructs a broadcaster tagging messages with origin.
func NewPubSubBroadcaster(topic *pubsub.Topic, origin string) (*PubSubBroadcaster, error) {
	if topic == nil {
		return nil, errors.New("revalidate broadcaster: topic is required")
	}
	if strings.TrimSpace(origin) == "" {
		return nil, errors.New("revalidate broadcaster: origin is required")
	}
	return &PubSubBroadcaster{
		topic:   topic,
		origin:  origin,
		marshal: json.Marshal,
	}, nil
}

// Broadcast publishes p and waits for the server acknowledgement.
func (b *PubSubBroadcaster) Broadcast(ctx context.Context, p Plan) error {
	if b == nil || b.topic == nil {
		return errors.New("revalidate broadcaster: not initialised")
	}
	data, err := b.marshal(p)
	if err != nil {
		return fmt.Errorf("marshal revalidation plan: %w", err)
	}

	attrs := map[string]string{originAttr: b.origin}
	setAttr(attrs, "type", p.DocType)
	setAttr(attrs, "slug", p.Slug)

	result := b.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish revalidation plan: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

// Listener applies plans broadcast by other instances.
type Listener struct {
	sub    *pubsub.Subscription
	origin string
	store  Invalidator
	logger *zap.Logger
}

// NewListener constructs a listener that ignores messages carrying its own origin.
func NewListener(sub *pubsub.Subscription, origin string, store Invalidator, logger *zap.Logger) (*Listener, error) {
	if sub == nil {
		return nil, errors.New("revalidate listener: subscription is required")
	}
	if store == nil {
		return nil, errors.New("revalidate listener: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{sub: sub, origin: origin, store: store, logger: logger}, nil
}

// Run receives until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	err := l.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		l.handle(msg)
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive revalidation plans: %w", err)
	}
	return nil
}

func (l *Listener) handle(msg *pubsub.Message) {
	if msg.Attributes[originAttr] == l.origin {
		return
	}
	var p Plan
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		// A malformed message is dropped rather than redelivered forever.
		l.logger.Error("revalidate listener: undecodable plan", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	dropped := Apply(l.store, p)
	l.logger.Info("revalidate listener: applied remote plan",
		zap.String("origin", msg.Attributes[originAttr]),
		zap.String("type", p.DocType),
		zap.Bool("all", p.All),
		zap.Int("dropped", dropped),
	)
}
