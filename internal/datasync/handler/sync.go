package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"apartur/internal/datasync/service"
	apperrors "apartur/pkg/errors"
	httputil "apartur/pkg/http"
	"apartur/pkg/kafka"
	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SyncHandler struct {
	manager  service.SyncManager
	requests kafka.Publisher
	admin    func(http.Handler) http.Handler
	log      *logger.Logger
}

// NewSyncHandler serves sync status and triggers. When requests is non-nil,
// admin sync requests are queued for the sync worker instead of running
// inside the HTTP request.
func NewSyncHandler(manager service.SyncManager, requests kafka.Publisher, admin func(http.Handler) http.Handler, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		manager:  manager,
		requests: requests,
		admin:    admin,
		log:      log,
	}
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status, err := h.manager.GetStatus(r.Context())
	if err != nil {
		h.writeError(w, "Status", apperrors.Internal("Failed to read sync status", err))
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write success response", "handler", "Status", "operation", "WriteSuccess", "error", err)
	}
}

// AutoSync is polled by clients; it runs only inside the daily window and
// always answers with the structured result.
func (h *SyncHandler) AutoSync(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result := h.manager.ExecuteAutoSync(r.Context())

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "AutoSync", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			h.writeError(w, "History", apperrors.InvalidInput("invalid limit parameter: "+s))
			return
		}
	}

	entries, err := h.manager.History(r.Context(), limit)
	if err != nil {
		h.writeError(w, "History", apperrors.Internal("Failed to read sync history", err))
		return
	}

	if err := httputil.WriteSuccess(w, entries); err != nil {
		h.log.Error("failed to write success response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SyncHandler) RequestSync(w http.ResponseWriter, r *http.Request) {
	var req model.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "RequestSync", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if h.requests != nil {
		if err := h.requests.PublishEvent(r.Context(), service.EventSyncRequested, "apartments", req); err != nil {
			h.log.Error("Failed to queue sync request", "error", err)
			h.writeError(w, "RequestSync", apperrors.Unavailable("sync queue"))
			return
		}
		if err := httputil.WriteAccepted(w, req); err != nil {
			h.log.Error("failed to write accepted response", "handler", "RequestSync", "operation", "WriteAccepted", "error", err)
		}
		return
	}

	result := h.manager.ExecuteSync(r.Context(), req.Force)
	if result.Skipped && result.Reason == service.ReasonLocked {
		h.writeError(w, "RequestSync", apperrors.Locked("A sync is already in progress"))
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "RequestSync", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SyncHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/sync/status", h.Status)
	router.GET("/api/v1/sync/history", h.History)
	router.POST("/api/v1/sync/auto", h.AutoSync)
	router.Handler(http.MethodPost, "/api/v1/sync/requests", h.admin(http.HandlerFunc(h.RequestSync)))
}

func (h *SyncHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}
