package kafka_middleware

import (
	"context"
	"time"

	"apartur/pkg/kafka"
	"apartur/pkg/logger"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Error("failed to publish message", append(attrs, "error", err)...)
		} else {
			log.Debug("message published", attrs...)
		}
		return err
	}
}

func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"retry_count", msg.GetRetryCount(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Error("failed to process message", append(attrs, "error", err)...)
		} else {
			log.Info("message processed", attrs...)
		}
		return err
	}
}

// RecoveryConsumerMiddleware turns a handler panic into a permanent error so
// the message is dead-lettered instead of crashing the worker.
func RecoveryConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic while processing message", "panic", rec, "key", msg.Key, "event_id", msg.GetEventID())
				err = kafka.NewPermanentError("handler panicked", nil).WithDetail("panic", rec)
			}
		}()
		return next(ctx, msg)
	}
}
