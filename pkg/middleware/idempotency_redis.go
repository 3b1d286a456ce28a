package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"apartur/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const idempotencyKeyPrefix = "apartur:idempotency:"

// RedisIdempotencyStore shares replayable responses between API instances.
// Redis failures degrade to "not cached" so a request is never rejected
// because the store is down.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl, log: log}
}

type redisCachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	data, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("Idempotency lookup failed", "error", err)
		return nil, false
	}

	var cached redisCachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		s.log.Warn("Discarding unreadable idempotency entry", "error", err)
		return nil, false
	}
	return &CachedResponse{
		StatusCode: cached.StatusCode,
		Headers:    cached.Headers,
		Body:       cached.Body,
		CreatedAt:  cached.CreatedAt,
	}, true
}

// Set keeps the first stored response when two requests with the same key race.
func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	data, err := json.Marshal(redisCachedResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Headers,
		Body:       response.Body,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("Failed to encode idempotency entry", "error", err)
		return
	}
	if err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, data, s.ttl).Err(); err != nil {
		s.log.Warn("Failed to store idempotency entry", "error", err)
	}
}

// Stop is a no-op: the Redis client is owned and closed by pkg/client.
func (s *RedisIdempotencyStore) Stop() {}
