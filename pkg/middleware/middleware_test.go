package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"apartur/pkg/kafka"
	"apartur/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic value must not leak to the client")
	}
}

func TestRequestLogging_SetsRequestID(t *testing.T) {
	var seen, correlation string
	h := RequestLogging(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		correlation = kafka.CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("request id missing from context")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header %q != context id %q", rec.Header().Get(RequestIDHeader), seen)
	}
	if correlation != seen {
		t.Errorf("event correlation id %q != request id %q", correlation, seen)
	}
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(logger.Nop())(okHandler())

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"text post", http.MethodPost, `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"missing header", http.MethodPut, `{}`, "", http.StatusUnsupportedMediaType},
		{"empty post body", http.MethodPost, "", "", http.StatusOK},
		{"get", http.MethodGet, "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	h := MaxRequestSize(4)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large")))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "late") {
		t.Error("late write should be dropped")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, nil, logger.Nop())
	defer rl.Stop()

	current := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request inside the window should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients are limited independently")
	}

	current = current.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("window should have slid")
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, nil, logger.Nop())
	defer rl.Stop()
	h := RateLimit(rl)(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestClientIPExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:40000"
	if got := ClientIPExtractor(req); got != "192.168.1.10" {
		t.Errorf("got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIPExtractor(req); got != "203.0.113.7" {
		t.Errorf("got %q", got)
	}
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(strconv.Itoa(int(n))))
	}))

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(DefaultIdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("/api/v1/reservations")
	second := send("/api/v1/reservations")

	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay mismatch: %d %q", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Error("replayed response should be marked")
	}

	send("/api/v1/other")
	if calls.Load() != 2 {
		t.Error("same key on another path must not replay")
	}
}

func TestAdminSignature(t *testing.T) {
	const secret = "s3cret"
	now := time.Date(2024, 3, 15, 22, 35, 0, 0, time.UTC)
	h := adminSignature(secret, logger.Nop(), func() time.Time { return now })(okHandler())

	body := []byte(`{"force":true}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	tests := []struct {
		name      string
		timestamp string
		signature string
		want      int
	}{
		{"valid", ts, "sha256=" + Sign(secret, ts, body), http.StatusOK},
		{"missing", ts, "", http.StatusUnauthorized},
		{"wrong secret", ts, "sha256=" + Sign("other", ts, body), http.StatusUnauthorized},
		{"no prefix", ts, Sign(secret, ts, body), http.StatusUnauthorized},
		{"stale", strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10), "sha256=" + Sign(secret, strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10), body), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/requests", bytes.NewReader(body))
			req.Header.Set(AdminTimestampHeader, tt.timestamp)
			if tt.signature != "" {
				req.Header.Set(AdminSignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAdminSignature_NoSecretRejects(t *testing.T) {
	h := AdminSignature("", logger.Nop())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}
