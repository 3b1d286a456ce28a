package app

import (
	"context"
	"net/http"
	"time"

	httputil "apartur/pkg/http"
	"apartur/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo"
)

const readinessTimeout = 2 * time.Second

const (
	checkOK    = "ok"
	checkError = "error"
)

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one dependency probed by the readiness endpoint.
type Check struct {
	Name   string
	Pinger Pinger
}

type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) Ping(ctx context.Context) error {
	if p.client == nil {
		return mongo.ErrClientDisconnected
	}
	return p.client.Ping(ctx, nil)
}

func NewMongoPinger(client *mongo.Client) Pinger {
	return mongoPinger{client: client}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func NewRedisPinger(client *redis.Client) Pinger {
	return redisPinger{client: client}
}

type HealthHandler struct {
	checks []Check
	log    *logger.Logger
}

func NewHealthHandler(log *logger.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

// Ready reports unavailable as soon as one dependency fails its ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status, body := http.StatusOK, HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			h.log.Error("Readiness check failed", "check", check.Name, "error", err, "path", r.URL.Path)
			body.Checks[check.Name] = checkError
			status, body.Status = http.StatusServiceUnavailable, "unavailable"
			continue
		}
		body.Checks[check.Name] = checkOK
	}

	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
