package main

import (
	apartmentshandler "apartur/internal/apartments/handler"
	"apartur/internal/bootstrap"
	synchandler "apartur/internal/datasync/handler"
	reservationshandler "apartur/internal/reservations/handler"
	"apartur/internal/reservations/repository"
	"apartur/internal/reservations/service"
	"apartur/internal/reservations/validator"
	"apartur/pkg/app"
	"apartur/pkg/config"
	"apartur/pkg/kafka"
	kafka_config "apartur/pkg/kafka/config"
	"apartur/pkg/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Apartur API")

	kafkaCfg, err := bootstrap.KafkaConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}
	reservationEvents := mustPublisher(cfg, kafkaCfg, cfg.ReservationEventsTopic)
	syncEvents := mustPublisher(cfg, kafkaCfg, cfg.SyncEventsTopic)

	// With Kafka, admin sync requests go to the sync worker.
	var syncRequests kafka.Publisher
	if kafkaCfg != nil {
		syncRequests = mustPublisher(cfg, kafkaCfg, cfg.SyncRequestsTopic)
	}

	apartmentRepo, apartmentService := bootstrap.Apartments(cfg)
	reservationService := initReservations(cfg, apartmentRepo, reservationEvents)
	syncManager, err := bootstrap.SyncManager(cfg, apartmentService, syncEvents)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize sync manager", "error", err)
	}

	admin := middleware.AdminSignature(cfg.AdminSecret, cfg.Log)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		reservationshandler.NewReservationHandler(reservationService, cfg.Log),
		apartmentshandler.NewApartmentHandler(apartmentService, admin, cfg.Log),
		synchandler.NewSyncHandler(syncManager, syncRequests, admin, cfg.Log),
	)
	serverApp.OnShutdown(func() {
		for _, p := range []kafka.Publisher{reservationEvents, syncEvents, syncRequests} {
			if p == nil {
				continue
			}
			if err := p.Close(); err != nil {
				cfg.Log.Error("Failed to close publisher", "error", err)
			}
		}
		cfg.GracefulShutdown()
	})
	serverApp.Run()
}

func initReservations(cfg *config.Config, apartments service.ApartmentReader, events kafka.Publisher) service.ReservationService {
	reservationService := service.NewReservationService(
		repository.NewMongoReservationRepository(cfg),
		repository.NewReservationLockRepository(cfg),
		apartments,
		validator.NewReservationValidator(cfg.Log),
		events,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

func mustPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, topic string) kafka.Publisher {
	publisher, err := bootstrap.Publisher(cfg, kafkaCfg, topic, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "topic", topic, "error", err)
	}
	return publisher
}
