package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"apartur/internal/datasync/service"
	"apartur/pkg/kafka"
	"apartur/pkg/logger"
	"apartur/pkg/middleware"
	"apartur/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockSyncManager struct {
	executeSyncFunc func(ctx context.Context, force bool) *model.AutoSyncResult
	historyLimit    int
}

func (m *mockSyncManager) NeedsSync(ctx context.Context) (bool, error) { return false, nil }

func (m *mockSyncManager) ExecuteAutoSync(ctx context.Context) *model.AutoSyncResult {
	return &model.AutoSyncResult{Skipped: true, Reason: service.ReasonBeforeCutoff}
}

func (m *mockSyncManager) ExecuteSync(ctx context.Context, force bool) *model.AutoSyncResult {
	if m.executeSyncFunc != nil {
		return m.executeSyncFunc(ctx, force)
	}
	return &model.AutoSyncResult{Success: true, Result: &model.SyncResult{}}
}

func (m *mockSyncManager) GetStatus(ctx context.Context) (*model.SyncStatus, error) {
	return &model.SyncStatus{NeedsSync: true}, nil
}

func (m *mockSyncManager) History(ctx context.Context, limit int) ([]model.SyncHistoryEntry, error) {
	m.historyLimit = limit
	return []model.SyncHistoryEntry{}, nil
}

type mockPublisher struct {
	eventType string
	payload   any
}

func (p *mockPublisher) PublishEvent(ctx context.Context, eventType, key string, payload any) error {
	p.eventType, p.payload = eventType, payload
	return nil
}

func (p *mockPublisher) Close() error { return nil }

const testSecret = "s3cret"

func newRouter(manager service.SyncManager, requests kafka.Publisher) *httprouter.Router {
	log := logger.Nop()
	router := httprouter.New()
	NewSyncHandler(manager, requests, middleware.AdminSignature(testSecret, log), log).RegisterRoutes(router)
	return router
}

func signedRequest(body string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/requests", strings.NewReader(body))
	req.Header.Set(middleware.AdminTimestampHeader, ts)
	req.Header.Set(middleware.AdminSignatureHeader, "sha256="+middleware.Sign(testSecret, ts, []byte(body)))
	return req
}

func TestStatus(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&mockSyncManager{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data model.SyncStatus `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.NeedsSync {
		t.Error("expected needs_sync=true")
	}
}

func TestAutoSync_ReturnsStructuredSkip(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&mockSyncManager{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/auto", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"skipped":true`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestHistory_Limit(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"", http.StatusOK, 0},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=-1", http.StatusBadRequest, 0},
		{"?limit=all", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			manager := &mockSyncManager{}
			w := httptest.NewRecorder()
			newRouter(manager, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/history"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if manager.historyLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", manager.historyLimit, tt.wantLimit)
			}
		})
	}
}

func TestRequestSync(t *testing.T) {
	t.Run("unsigned", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/requests", strings.NewReader(`{"force":true}`))
		newRouter(&mockSyncManager{}, nil).ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("runs inline with force", func(t *testing.T) {
		var gotForce bool
		manager := &mockSyncManager{
			executeSyncFunc: func(ctx context.Context, force bool) *model.AutoSyncResult {
				gotForce = force
				return &model.AutoSyncResult{Success: true, Result: &model.SyncResult{Processed: 1}}
			},
		}
		w := httptest.NewRecorder()
		newRouter(manager, nil).ServeHTTP(w, signedRequest(`{"force":true}`))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if !gotForce {
			t.Error("force flag not passed through")
		}
	})

	t.Run("live lock", func(t *testing.T) {
		manager := &mockSyncManager{
			executeSyncFunc: func(ctx context.Context, force bool) *model.AutoSyncResult {
				return &model.AutoSyncResult{Skipped: true, Reason: service.ReasonLocked}
			},
		}
		w := httptest.NewRecorder()
		newRouter(manager, nil).ServeHTTP(w, signedRequest(`{"force":true}`))

		if w.Code != http.StatusLocked {
			t.Errorf("expected 423, got %d", w.Code)
		}
	})

	t.Run("queued when a publisher is configured", func(t *testing.T) {
		manager := &mockSyncManager{
			executeSyncFunc: func(ctx context.Context, force bool) *model.AutoSyncResult {
				t.Error("sync must not run inline")
				return nil
			},
		}
		publisher := &mockPublisher{}
		w := httptest.NewRecorder()
		newRouter(manager, publisher).ServeHTTP(w, signedRequest(`{"force":false,"requested_by":"ops"}`))

		if w.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", w.Code)
		}
		if publisher.eventType != service.EventSyncRequested {
			t.Errorf("event type = %q", publisher.eventType)
		}
		if req, ok := publisher.payload.(model.SyncRequest); !ok || req.RequestedBy != "ops" {
			t.Errorf("payload = %#v", publisher.payload)
		}
	})
}
