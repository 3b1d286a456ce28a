package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMessageBuilder_Build(t *testing.T) {
	msg := NewMessage().
		WithKey("apt-1").
		WithValue(map[string]int{"guests": 2}).
		WithEventType("reservation.created").
		WithSource("reservations").
		Build()

	if msg.Key != "apt-1" {
		t.Errorf("Key = %q", msg.Key)
	}
	if string(msg.Value) != `{"guests":2}` {
		t.Errorf("Value = %s", msg.Value)
	}
	if msg.GetEventID() == "" {
		t.Error("event id should be generated")
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("timestamp header should be set")
	}
	if msg.GetEventType() != "reservation.created" {
		t.Errorf("event type = %q", msg.GetEventType())
	}
}

func TestMessageBuilder_BuildE_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).BuildE()
	if err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestMessage_RetryCount(t *testing.T) {
	msg := NewMessage().Build()
	if msg.GetRetryCount() != 0 {
		t.Fatalf("initial retry count = %d", msg.GetRetryCount())
	}
	for range 12 {
		msg.IncrementRetryCount()
	}
	if msg.GetRetryCount() != 12 {
		t.Errorf("retry count = %d, want 12", msg.GetRetryCount())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"transient kafka error", NewTransientError("broker down", nil), ErrorTypeTransient},
		{"business", NewBusinessError("sync skipped", nil), ErrorTypeBusiness},
		{"wrapped permanent", fmt.Errorf("decode: %w", NewPermanentError("bad json", nil)), ErrorTypePermanent},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"connection refused text", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"unknown", errors.New("something odd"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("timeout", nil)

	if !ShouldRetry(transient, 0, 3) {
		t.Error("transient error under the limit should retry")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("should not retry once the limit is reached")
	}
	if ShouldRetry(NewPermanentError("bad", nil), 0, 3) {
		t.Error("permanent error should not retry")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.PublishEvent(context.Background(), "x", "k", nil); err != nil {
		t.Errorf("PublishEvent() = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
