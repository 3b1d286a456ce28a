package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"apartur/pkg/logger"
	"apartur/pkg/middleware"
	"apartur/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockApartmentService struct {
	nearestFunc  func(ctx context.Context, lat, lon float64, limit int, maxKm float64) ([]*model.ApartmentDistance, error)
	searchFunc   func(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, int64, error)
	setPriceFunc func(ctx context.Context, id string, update *model.PriceUpdate) (*model.Apartment, error)
}

func (m *mockApartmentService) GetByID(ctx context.Context, id string) (*model.Apartment, error) {
	return &model.Apartment{ID: id}, nil
}

func (m *mockApartmentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Apartment, int64, error) {
	return []*model.Apartment{}, 0, nil
}

func (m *mockApartmentService) Search(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, int64, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, filter)
	}
	return []*model.Apartment{}, 0, nil
}

func (m *mockApartmentService) Nearest(ctx context.Context, lat, lon float64, limit int, maxKm float64) ([]*model.ApartmentDistance, error) {
	if m.nearestFunc != nil {
		return m.nearestFunc(ctx, lat, lon, limit, maxKm)
	}
	return []*model.ApartmentDistance{}, nil
}

func (m *mockApartmentService) SetPrice(ctx context.Context, id string, update *model.PriceUpdate) (*model.Apartment, error) {
	if m.setPriceFunc != nil {
		return m.setPriceFunc(ctx, id, update)
	}
	return &model.Apartment{ID: id, PricePerNight: &update.PricePerNight}, nil
}

func (m *mockApartmentService) SyncFromOpenData(ctx context.Context) (*model.SyncResult, error) {
	return &model.SyncResult{}, nil
}

const testSecret = "s3cret"

func newRouter(svc *mockApartmentService) *httprouter.Router {
	log := logger.Nop()
	router := httprouter.New()
	NewApartmentHandler(svc, middleware.AdminSignature(testSecret, log), log).RegisterRoutes(router)
	return router
}

func TestNearest_Parameters(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantMaxKm  float64
	}{
		{"valid", "?lat=41.65&lon=-4.72&limit=5&max_km=25", http.StatusOK, 5, 25},
		{"defaults", "?lat=41.65&lon=-4.72", http.StatusOK, 0, 0},
		{"missing lon", "?lat=41.65", http.StatusBadRequest, 0, 0},
		{"bad lat", "?lat=north&lon=-4.72", http.StatusBadRequest, 0, 0},
		{"bad limit", "?lat=41.65&lon=-4.72&limit=many", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			var gotMaxKm float64
			svc := &mockApartmentService{
				nearestFunc: func(ctx context.Context, lat, lon float64, limit int, maxKm float64) ([]*model.ApartmentDistance, error) {
					gotLimit, gotMaxKm = limit, maxKm
					return []*model.ApartmentDistance{}, nil
				},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/apartments/nearest"+tt.query, nil)
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && (gotLimit != tt.wantLimit || gotMaxKm != tt.wantMaxKm) {
				t.Errorf("limit=%d maxKm=%v", gotLimit, gotMaxKm)
			}
		})
	}
}

func TestSearch_PassesFilter(t *testing.T) {
	var got model.ApartmentFilter
	svc := &mockApartmentService{
		searchFunc: func(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, int64, error) {
			got = filter
			return []*model.Apartment{}, 0, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/apartments/search?province=Le%C3%B3n&min_capacity=4&q=plaza", nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.Province != "León" || got.MinCapacity != 4 || got.Query != "plaza" {
		t.Errorf("filter = %+v", got)
	}
}

func TestSetPrice_RequiresSignature(t *testing.T) {
	body := `{"price_per_night":85}`
	path := "/api/v1/apartments/id/65f1a2b3c4d5e6f708192a3b/price"

	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	newRouter(&mockApartmentService{}).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned request: expected 401, got %d", w.Code)
	}

	var gotID string
	svc := &mockApartmentService{
		setPriceFunc: func(ctx context.Context, id string, update *model.PriceUpdate) (*model.Apartment, error) {
			gotID = id
			return &model.Apartment{ID: id, PricePerNight: &update.PricePerNight}, nil
		},
	}
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req = httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	req.Header.Set(middleware.AdminTimestampHeader, ts)
	req.Header.Set(middleware.AdminSignatureHeader, "sha256="+middleware.Sign(testSecret, ts, []byte(body)))
	w = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("signed request: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotID != "65f1a2b3c4d5e6f708192a3b" {
		t.Errorf("id = %q", gotID)
	}
}
