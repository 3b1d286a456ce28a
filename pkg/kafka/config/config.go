package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"apartur/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers     []string
	ClientID    string
	DialTimeout time.Duration

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // none, gzip, snappy, lz4, zstd
	ProducerAsync        bool

	ConsumerStartOffset       int64 // -1 = newest, -2 = oldest
	ConsumerMinBytes          int
	ConsumerMaxBytes          int
	ConsumerMaxWait           time.Duration
	ConsumerCommitInterval    time.Duration // 0 commits synchronously after each message
	ConsumerHeartbeatInterval time.Duration
	ConsumerSessionTimeout    time.Duration
	ConsumerRebalanceTimeout  time.Duration
	ConsumerMaxRetries        int
	ConsumerRetryBackoff      time.Duration

	EnableMiddleware bool
}

// Load reads the Kafka settings from the environment and validates them.
func Load() (*Config, error) {
	env := envReader{}

	cfg := &Config{
		Brokers:     splitBrokers(env.str(EnvKafkaBrokers, DefaultKafkaBrokers)),
		ClientID:    env.str(EnvKafkaClientID, DefaultKafkaClientID),
		DialTimeout: env.duration(EnvKafkaDialTimeout, DefaultKafkaDialTimeout),

		ProducerMaxAttempts:  env.integer(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout: env.duration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerRequireAcks:  env.integer(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
		ProducerCompression:  strings.ToLower(env.str(EnvKafkaProducerCompression, DefaultProducerCompression)),
		ProducerAsync:        env.boolean(EnvKafkaProducerAsync, DefaultProducerAsync),

		ConsumerStartOffset:       int64(env.integer(EnvKafkaConsumerStartOffset, DefaultConsumerStartOffset)),
		ConsumerMinBytes:          env.integer(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes),
		ConsumerMaxBytes:          env.integer(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
		ConsumerMaxWait:           env.duration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
		ConsumerCommitInterval:    env.duration(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval),
		ConsumerHeartbeatInterval: env.duration(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
		ConsumerSessionTimeout:    env.duration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
		ConsumerRebalanceTimeout:  env.duration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
		ConsumerMaxRetries:        env.integer(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
		ConsumerRetryBackoff:      env.duration(EnvKafkaConsumerRetryBackoff, DefaultConsumerRetryBackoff),

		EnableMiddleware: env.boolean(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dialer is used by consumer group readers.
func (cfg *Config) Dialer() *kafka.Dialer {
	return &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}
}

// Transport is shared by producer and DLQ writers.
func (cfg *Config) Transport() *kafka.Transport {
	return &kafka.Transport{
		ClientID:    cfg.ClientID,
		DialTimeout: cfg.DialTimeout,
	}
}

func (cfg *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(len(cfg.Brokers) > 0, "At least one Kafka broker is required")
	check(cfg.ClientID != "", "ClientID cannot be empty")
	check(cfg.DialTimeout > 0, "DialTimeout must be positive, got: %s", cfg.DialTimeout)

	check(cfg.ProducerMaxAttempts > 0, "ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts)
	check(cfg.ProducerBatchTimeout > 0, "ProducerBatchTimeout must be positive, got: %s", cfg.ProducerBatchTimeout)
	switch cfg.ProducerCompression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		check(false, "ProducerCompression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.ProducerCompression)
	}
	check(cfg.ProducerRequireAcks >= -1 && cfg.ProducerRequireAcks <= 1,
		"ProducerRequireAcks must be -1, 0, or 1, got: %d", cfg.ProducerRequireAcks)

	check(cfg.ConsumerStartOffset == kafka.LastOffset || cfg.ConsumerStartOffset == kafka.FirstOffset,
		"ConsumerStartOffset must be -1 (newest) or -2 (oldest), got: %d", cfg.ConsumerStartOffset)
	check(cfg.ConsumerMinBytes > 0 && cfg.ConsumerMaxBytes >= cfg.ConsumerMinBytes,
		"Consumer byte bounds are invalid: min=%d max=%d", cfg.ConsumerMinBytes, cfg.ConsumerMaxBytes)
	check(cfg.ConsumerMaxWait > 0, "ConsumerMaxWait must be positive, got: %s", cfg.ConsumerMaxWait)
	check(cfg.ConsumerCommitInterval >= 0, "ConsumerCommitInterval cannot be negative, got: %s", cfg.ConsumerCommitInterval)
	check(cfg.ConsumerHeartbeatInterval > 0, "ConsumerHeartbeatInterval must be positive, got: %s", cfg.ConsumerHeartbeatInterval)
	check(cfg.ConsumerSessionTimeout > cfg.ConsumerHeartbeatInterval,
		"ConsumerSessionTimeout (%s) must exceed ConsumerHeartbeatInterval (%s)", cfg.ConsumerSessionTimeout, cfg.ConsumerHeartbeatInterval)
	check(cfg.ConsumerRebalanceTimeout > 0, "ConsumerRebalanceTimeout must be positive, got: %s", cfg.ConsumerRebalanceTimeout)
	check(cfg.ConsumerMaxRetries >= 0, "ConsumerMaxRetries cannot be negative, got: %d", cfg.ConsumerMaxRetries)
	check(cfg.ConsumerRetryBackoff >= 0, "ConsumerRetryBackoff cannot be negative, got: %s", cfg.ConsumerRetryBackoff)

	if len(problems) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Kafka configuration validation failed:\n")
	for i, p := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	return fmt.Errorf("%s", b.String())
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"client_id", cfg.ClientID,
		"producer_max_attempts", cfg.ProducerMaxAttempts,
		"producer_require_acks", cfg.ProducerRequireAcks,
		"producer_compression", cfg.ProducerCompression,
		"consumer_start_offset", cfg.ConsumerStartOffset,
		"consumer_max_retries", cfg.ConsumerMaxRetries,
		"consumer_rebalance_timeout", cfg.ConsumerRebalanceTimeout,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func splitBrokers(raw string) []string {
	brokers := make([]string, 0)
	for _, broker := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// envReader falls back to the default when a variable is unset or unparseable.
type envReader struct{}

func (envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e envReader) integer(key string, def int) int {
	if n, err := strconv.Atoi(e.str(key, "")); err == nil {
		return n
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	if b, err := strconv.ParseBool(e.str(key, "")); err == nil {
		return b
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.str(key, "")); err == nil {
		return d
	}
	return def
}
