// Package bootstrap builds the services shared by the apartur binaries.
package bootstrap

import (
	"fmt"

	apartmentsrepo "apartur/internal/apartments/repository"
	apartmentsservice "apartur/internal/apartments/service"
	apartmentsvalidator "apartur/internal/apartments/validator"
	"apartur/internal/datasync/lock"
	"apartur/internal/datasync/opendata"
	syncservice "apartur/internal/datasync/service"
	"apartur/internal/datasync/state"
	"apartur/pkg/config"
	"apartur/pkg/kafka"
	kafka_config "apartur/pkg/kafka/config"
	kafkamiddleware "apartur/pkg/kafka/middleware"
)

// Apartments wires the apartment catalogue against Mongo and the open-data
// registry.
func Apartments(cfg *config.Config) (apartmentsrepo.ApartmentRepository, apartmentsservice.ApartmentService) {
	repo := apartmentsrepo.NewMongoApartmentRepository(cfg)
	svc := apartmentsservice.NewApartmentService(
		repo,
		opendata.NewClient(cfg),
		apartmentsvalidator.NewApartmentValidator(cfg.Log),
		cfg,
	)
	return repo, svc
}

// SyncManager wires the lock, the configured state backend and the
// synchronizer.
func SyncManager(cfg *config.Config, synchronizer syncservice.Synchronizer, events kafka.Publisher) (syncservice.SyncManager, error) {
	fileLock, err := lock.NewFileLock(cfg.SyncDataDir, cfg.SyncLockStaleAfter, cfg.Log)
	if err != nil {
		return nil, err
	}

	var store state.Store
	switch cfg.SyncStateBackend {
	case config.SyncStateBackendMongo:
		store = state.NewMongoStore(cfg)
	default:
		store, err = state.NewFileStore(cfg.SyncDataDir, cfg.SyncHistoryLimit, cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	cfg.Log.Info("Sync manager initialized",
		"data_dir", cfg.SyncDataDir,
		"state_backend", cfg.SyncStateBackend,
		"cutoff", cfg.SyncCutoff,
		"timezone", cfg.SyncTimezone,
	)
	return syncservice.NewSyncManager(fileLock, store, synchronizer, events, cfg), nil
}

// KafkaConfig loads broker settings, or returns nil when Kafka is disabled.
func KafkaConfig(cfg *config.Config) (*kafka_config.Config, error) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)
	return kafkaCfg, nil
}

// Publisher returns an event publisher for topic, or a no-op publisher when
// kafkaCfg is nil.
func Publisher(cfg *config.Config, kafkaCfg *kafka_config.Config, topic, source string) (kafka.Publisher, error) {
	if kafkaCfg == nil {
		return kafka.NopPublisher{}, nil
	}
	producer, err := kafka.NewProducer(kafkaCfg, topic, cfg.DLQTopic, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer for %s: %w", topic, err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	}
	return kafka.NewEventPublisher(producer, source), nil
}
