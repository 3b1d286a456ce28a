package kafka

import (
	"context"
	"fmt"
)

const schemaVersion = "1"

type correlationKey struct{}

// ContextWithCorrelationID tags events published with ctx. An empty id leaves
// ctx unchanged.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Publisher emits domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, key string, payload any) error
	Close() error
}

type EventPublisher struct {
	producer *Producer
	source   string
}

func NewEventPublisher(producer *Producer, source string) *EventPublisher {
	return &EventPublisher{producer: producer, source: source}
}

func (p *EventPublisher) PublishEvent(ctx context.Context, eventType, key string, payload any) error {
	builder := NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithSource(p.source).
		WithSchemaVersion(schemaVersion)
	if id := CorrelationIDFromContext(ctx); id != "" {
		builder.WithCorrelationID(id)
	}
	msg, err := builder.BuildE()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return p.producer.Publish(ctx, msg)
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
