package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apartur/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, time.Hour, logger.Nop()), server
}

func TestRedisIdempotencyStore_RoundTrip(t *testing.T) {
	store, server := newRedisStore(t)
	ctx := context.Background()

	_, found := store.Get(ctx, "POST /api/v1/reservations k1")
	assert.False(t, found)

	store.Set(ctx, "POST /api/v1/reservations k1", &CachedResponse{
		StatusCode: http.StatusCreated,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"id":"r1"}`),
	})

	cached, found := store.Get(ctx, "POST /api/v1/reservations k1")
	require.True(t, found)
	assert.Equal(t, http.StatusCreated, cached.StatusCode)
	assert.Equal(t, `{"id":"r1"}`, string(cached.Body))
	assert.Equal(t, "application/json", cached.Headers.Get("Content-Type"))

	ttl := server.TTL(idempotencyKeyPrefix + "POST /api/v1/reservations k1")
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisIdempotencyStore_FirstResponseWins(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusCreated, Body: []byte("first")})
	store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusCreated, Body: []byte("second")})

	cached, found := store.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, "first", string(cached.Body))
}

func TestRedisIdempotencyStore_ExpiredEntryIsMiss(t *testing.T) {
	store, server := newRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusOK, Body: []byte("ok")})
	server.FastForward(2 * time.Hour)

	_, found := store.Get(ctx, "k")
	assert.False(t, found)
}

func TestRedisIdempotencyStore_UnavailableRedisPassesThrough(t *testing.T) {
	store, server := newRedisStore(t)
	server.Close()

	calls := 0
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		req.Header.Set(DefaultIdempotencyHeader, "k")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
}
