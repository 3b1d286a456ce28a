package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"apartur/internal/bootstrap"
	"apartur/internal/datasync/worker"
	"apartur/pkg/config"
	"apartur/pkg/kafka"
	kafkamiddleware "apartur/pkg/kafka/middleware"
)

const ServiceName = "apartments-sync-worker"

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.KafkaEnabled {
		cfg.Log.Fatal("The sync worker requires KAFKA_ENABLED=true")
	}
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := bootstrap.KafkaConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}

	events, err := bootstrap.Publisher(cfg, kafkaCfg, cfg.SyncEventsTopic, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}
	defer events.Close()

	_, apartments := bootstrap.Apartments(cfg)
	manager, err := bootstrap.SyncManager(cfg, apartments, events)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize sync manager", "error", err)
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.SyncRequestsTopic,
		cfg.SyncWorkerGroupID,
		cfg.DLQTopic,
		worker.NewWorker(manager, cfg.Log).Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.RecoveryConsumerMiddleware(cfg.Log))
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Sync worker started", "topic", cfg.SyncRequestsTopic, "group_id", cfg.SyncWorkerGroupID)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}
	if err := consumer.Close(); err != nil && !errors.Is(err, kafka.ErrConsumerClosed) {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Sync worker stopped")
}
