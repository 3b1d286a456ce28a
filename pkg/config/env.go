package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvEnvFile = "ENV_FILE"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvAdminSecret = "ADMIN_SECRET"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout     = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL     = "IDEMPOTENCY_TTL"
	EnvIdempotencyBackend = "IDEMPOTENCY_BACKEND"
	EnvMaxRequestSize     = "MAX_REQUEST_SIZE"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvMaxGuests          = "RESERVATION_MAX_GUESTS"
	EnvMaxStayNights      = "RESERVATION_MAX_STAY_NIGHTS"
	EnvReservationLockTTL = "RESERVATION_LOCK_TTL"

	EnvSyncDataDir        = "SYNC_DATA_DIR"
	EnvSyncCutoff         = "SYNC_CUTOFF"
	EnvSyncTimezone       = "SYNC_TIMEZONE"
	EnvSyncLockStaleAfter = "SYNC_LOCK_STALE_AFTER"
	EnvSyncHistoryLimit   = "SYNC_HISTORY_LIMIT"
	EnvSyncStateBackend   = "SYNC_STATE_BACKEND"
	EnvSyncTimeout        = "SYNC_TIMEOUT"

	EnvOpenDataBaseURL     = "OPENDATA_BASE_URL"
	EnvOpenDataDataset     = "OPENDATA_DATASET"
	EnvOpenDataWhere       = "OPENDATA_WHERE"
	EnvOpenDataPageSize    = "OPENDATA_PAGE_SIZE"
	EnvOpenDataAPIKey      = "OPENDATA_API_KEY"
	EnvOpenDataHTTPTimeout = "OPENDATA_HTTP_TIMEOUT"

	EnvKafkaEnabled           = "KAFKA_ENABLED"
	EnvReservationEventsTopic = "KAFKA_RESERVATION_EVENTS_TOPIC"
	EnvSyncRequestsTopic      = "KAFKA_SYNC_REQUESTS_TOPIC"
	EnvSyncEventsTopic        = "KAFKA_SYNC_EVENTS_TOPIC"
	EnvSyncWorkerGroupID      = "KAFKA_SYNC_WORKER_GROUP_ID"
	EnvDLQTopic               = "KAFKA_DLQ_TOPIC"
)
