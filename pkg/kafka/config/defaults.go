package kafka_config

import "time"

const (
	DefaultKafkaBrokers     = "localhost:9092"
	DefaultKafkaClientID    = "apartur"
	DefaultKafkaDialTimeout = 10 * time.Second
)

// Reservation events are small and must not be lost, so every write waits for
// all in-sync replicas.
const (
	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false
)

// A sync run can take minutes, so the rebalance window is generous and a
// request is retried only a couple of times.
const (
	DefaultConsumerStartOffset       = -1
	DefaultConsumerMinBytes          = 1
	DefaultConsumerMaxBytes          = 1 << 20
	DefaultConsumerMaxWait           = 1 * time.Second
	DefaultConsumerCommitInterval    = 0
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 30 * time.Second
	DefaultConsumerRebalanceTimeout  = 2 * time.Minute
	DefaultConsumerMaxRetries        = 2
	DefaultConsumerRetryBackoff      = 5 * time.Second
)

const DefaultEnableMiddleware = true
