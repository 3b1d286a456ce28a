package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"apartur/pkg/client"
	"apartur/pkg/logger"

	"github.com/joho/godotenv"
)

var (
	timeOfDayRegex  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	mongoURIRegex   = regexp.MustCompile(`^mongodb(\+srv)?://`)
	credentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	AdminSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout     time.Duration
	IdempotencyTTL     time.Duration
	IdempotencyBackend string
	MaxRequestSize     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MaxGuests          int
	MaxStayNights      int
	ReservationLockTTL time.Duration

	SyncDataDir        string
	SyncCutoff         string
	SyncTimezone       string
	SyncLocation       *time.Location
	SyncLockStaleAfter time.Duration
	SyncHistoryLimit   int
	SyncStateBackend   string
	SyncTimeout        time.Duration

	OpenDataBaseURL     string
	OpenDataDataset     string
	OpenDataWhere       string
	OpenDataPageSize    int
	OpenDataAPIKey      string
	OpenDataHTTPTimeout time.Duration

	KafkaEnabled           bool
	ReservationEventsTopic string
	SyncRequestsTopic      string
	SyncEventsTopic        string
	SyncWorkerGroupID      string
	DLQTopic               string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	envFile, envErr := loadEnvFile()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		AdminSecret: getEnvStr(EnvAdminSecret, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout:     getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL:     getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		IdempotencyBackend: strings.ToLower(getEnvStr(EnvIdempotencyBackend, DefaultIdempotencyBackend)),
		MaxRequestSize:     getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		MaxGuests:          getEnvNum(EnvMaxGuests, DefaultMaxGuests),
		MaxStayNights:      getEnvNum(EnvMaxStayNights, DefaultMaxStayNights),
		ReservationLockTTL: getEnvDuration(EnvReservationLockTTL, DefaultReservationLockTTL),

		SyncDataDir:        getEnvStr(EnvSyncDataDir, DefaultSyncDataDir),
		SyncCutoff:         getEnvStr(EnvSyncCutoff, DefaultSyncCutoff),
		SyncTimezone:       getEnvStr(EnvSyncTimezone, DefaultSyncTimezone),
		SyncLockStaleAfter: getEnvDuration(EnvSyncLockStaleAfter, DefaultSyncLockStaleAfter),
		SyncHistoryLimit:   getEnvNum(EnvSyncHistoryLimit, DefaultSyncHistoryLimit),
		SyncStateBackend:   strings.ToLower(getEnvStr(EnvSyncStateBackend, DefaultSyncStateBackend)),
		SyncTimeout:        getEnvDuration(EnvSyncTimeout, DefaultSyncTimeout),

		OpenDataBaseURL:     strings.TrimSuffix(getEnvStr(EnvOpenDataBaseURL, DefaultOpenDataBaseURL), "/"),
		OpenDataDataset:     getEnvStr(EnvOpenDataDataset, DefaultOpenDataDataset),
		OpenDataWhere:       getEnvStr(EnvOpenDataWhere, DefaultOpenDataWhere),
		OpenDataPageSize:    getEnvNum(EnvOpenDataPageSize, DefaultOpenDataPageSize),
		OpenDataAPIKey:      getEnvStr(EnvOpenDataAPIKey, ""),
		OpenDataHTTPTimeout: getEnvDuration(EnvOpenDataHTTPTimeout, DefaultOpenDataHTTPTimeout),

		KafkaEnabled:           getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		ReservationEventsTopic: getEnvStr(EnvReservationEventsTopic, DefaultReservationEventsTopic),
		SyncRequestsTopic:      getEnvStr(EnvSyncRequestsTopic, DefaultSyncRequestsTopic),
		SyncEventsTopic:        getEnvStr(EnvSyncEventsTopic, DefaultSyncEventsTopic),
		SyncWorkerGroupID:      getEnvStr(EnvSyncWorkerGroupID, DefaultSyncWorkerGroupID),
		DLQTopic:               getEnvStr(EnvDLQTopic, DefaultDLQTopic),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if envErr != nil {
		cfg.Log.Warn("Failed to load env file", "path", envFile, "error", envErr)
	} else if envFile != "" {
		cfg.Log.Info("Loaded env file", "path", envFile)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects Redis only when a component is configured to use it.
func (cfg *Config) SetRedis() {
	if cfg.IdempotencyBackend != IdempotencyBackendRedis {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// Validate also resolves SyncLocation from SyncTimezone.
func (cfg *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		problems = append(problems, "MongoURI cannot be empty")
	} else if !mongoURIRegex.MatchString(cfg.MongoURI) {
		problems = append(problems, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		problems = append(problems, "MongoDatabaseName cannot be empty")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"ReservationLockTTL", cfg.ReservationLockTTL},
		{"SyncLockStaleAfter", cfg.SyncLockStaleAfter},
		{"SyncTimeout", cfg.SyncTimeout},
		{"OpenDataHTTPTimeout", cfg.OpenDataHTTPTimeout},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		problems = append(problems, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	switch cfg.IdempotencyBackend {
	case IdempotencyBackendMemory:
	case IdempotencyBackendRedis:
		if cfg.RedisAddr == "" {
			problems = append(problems, "RedisAddr cannot be empty when IdempotencyBackend is redis")
		}
		if cfg.RedisDB < 0 {
			problems = append(problems, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
		}
	default:
		problems = append(problems, fmt.Sprintf("IdempotencyBackend must be one of [memory, redis], got: %s", cfg.IdempotencyBackend))
	}
	if cfg.MaxRequestSize <= 0 {
		problems = append(problems, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.MaxGuests <= 0 {
		problems = append(problems, fmt.Sprintf("MaxGuests must be positive, got: %d", cfg.MaxGuests))
	}
	if cfg.MaxStayNights <= 0 {
		problems = append(problems, fmt.Sprintf("MaxStayNights must be positive, got: %d", cfg.MaxStayNights))
	}

	if !timeOfDayRegex.MatchString(cfg.SyncCutoff) {
		problems = append(problems, fmt.Sprintf("SyncCutoff must be in HH:MM format (00:00-23:59), got: %s", cfg.SyncCutoff))
	}
	if loc, err := time.LoadLocation(cfg.SyncTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("SyncTimezone must be a valid IANA time zone, got: %s", cfg.SyncTimezone))
	} else {
		cfg.SyncLocation = loc
	}
	if cfg.SyncDataDir == "" {
		problems = append(problems, "SyncDataDir cannot be empty")
	}
	if cfg.SyncHistoryLimit <= 0 {
		problems = append(problems, fmt.Sprintf("SyncHistoryLimit must be positive, got: %d", cfg.SyncHistoryLimit))
	}
	if cfg.SyncStateBackend != SyncStateBackendFile && cfg.SyncStateBackend != SyncStateBackendMongo {
		problems = append(problems, fmt.Sprintf("SyncStateBackend must be one of [file, mongo], got: %s", cfg.SyncStateBackend))
	}

	if !strings.HasPrefix(cfg.OpenDataBaseURL, "http://") && !strings.HasPrefix(cfg.OpenDataBaseURL, "https://") {
		problems = append(problems, fmt.Sprintf("OpenDataBaseURL must be an http(s) URL, got: %s", cfg.OpenDataBaseURL))
	}
	if cfg.OpenDataDataset == "" {
		problems = append(problems, "OpenDataDataset cannot be empty")
	}
	if cfg.OpenDataPageSize < 1 || cfg.OpenDataPageSize > 100 {
		problems = append(problems, fmt.Sprintf("OpenDataPageSize must be between 1 and 100, got: %d", cfg.OpenDataPageSize))
	}

	if cfg.KafkaEnabled {
		if cfg.ReservationEventsTopic == "" || cfg.SyncRequestsTopic == "" || cfg.SyncEventsTopic == "" {
			problems = append(problems, "Kafka topics cannot be empty when Kafka is enabled")
		}
		if cfg.SyncWorkerGroupID == "" {
			problems = append(problems, "SyncWorkerGroupID cannot be empty when Kafka is enabled")
		}
	}

	if len(problems) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range problems {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"idempotency_backend", cfg.IdempotencyBackend,
		"redis_addr", cfg.RedisAddr,
		"admin_secret_set", cfg.AdminSecret != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"max_guests", cfg.MaxGuests,
		"max_stay_nights", cfg.MaxStayNights,
		"reservation_lock_ttl", cfg.ReservationLockTTL,
		"sync_data_dir", cfg.SyncDataDir,
		"sync_cutoff", cfg.SyncCutoff,
		"sync_timezone", cfg.SyncTimezone,
		"sync_lock_stale_after", cfg.SyncLockStaleAfter,
		"sync_history_limit", cfg.SyncHistoryLimit,
		"sync_state_backend", cfg.SyncStateBackend,
		"sync_timeout", cfg.SyncTimeout,
		"opendata_base_url", cfg.OpenDataBaseURL,
		"opendata_dataset", cfg.OpenDataDataset,
		"opendata_page_size", cfg.OpenDataPageSize,
		"opendata_api_key_set", cfg.OpenDataAPIKey != "",
		"kafka_enabled", cfg.KafkaEnabled,
	)
}

// CutoffClock returns the configured daily sync cutoff as hour and minute.
func (cfg *Config) CutoffClock() (int, int) {
	t, err := time.Parse("15:04", cfg.SyncCutoff)
	if err != nil {
		t, _ = time.Parse("15:04", DefaultSyncCutoff)
	}
	return t.Hour(), t.Minute()
}

func redactMongoURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// loadEnvFile reads ENV_FILE (default .env) into the process environment.
// Variables that are already set win. A missing file is not an error.
func loadEnvFile() (string, error) {
	path := getEnvStr(EnvEnvFile, DefaultEnvFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return path, err
	}
	return path, godotenv.Load(path)
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
