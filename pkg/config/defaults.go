package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "apartur"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultEnvFile = ".env"

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout     = 30 * time.Second
	DefaultIdempotencyTTL     = 24 * time.Hour
	DefaultIdempotencyBackend = IdempotencyBackendMemory
	DefaultMaxRequestSize     = 1 * 1024 * 1024 // 1MB

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultMaxGuests          = 50
	DefaultMaxStayNights      = 90
	DefaultReservationLockTTL = 10 * time.Second

	DefaultSyncDataDir        = "./data/sync"
	DefaultSyncCutoff         = "22:30"
	DefaultSyncTimezone       = "Europe/Madrid"
	DefaultSyncLockStaleAfter = 30 * time.Minute
	DefaultSyncHistoryLimit   = 100
	DefaultSyncStateBackend   = SyncStateBackendFile
	DefaultSyncTimeout        = 20 * time.Minute

	DefaultOpenDataBaseURL     = "https://analisis.datosabiertos.jcyl.es/api/explore/v2.1"
	DefaultOpenDataDataset     = "registro-de-turismo-de-castilla-y-leon"
	DefaultOpenDataWhere       = `establecimiento="Apartamentos Turísticos"`
	DefaultOpenDataPageSize    = 100
	DefaultOpenDataHTTPTimeout = 30 * time.Second

	DefaultKafkaEnabled           = false
	DefaultReservationEventsTopic = "reservation-events"
	DefaultSyncRequestsTopic      = "apartments-sync-requests"
	DefaultSyncEventsTopic        = "apartments-sync-events"
	DefaultSyncWorkerGroupID      = "apartments-sync-worker"
	DefaultDLQTopic               = "dlq-apartur"
)

const (
	SyncStateBackendFile  = "file"
	SyncStateBackendMongo = "mongo"
)

const (
	IdempotencyBackendMemory = "memory"
	IdempotencyBackendRedis  = "redis"
)
