package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apartmentserrors "apartur/internal/apartments/errors"
	"apartur/internal/apartments/validator"
	"apartur/pkg/config"
	apperrors "apartur/pkg/errors"
	"apartur/pkg/logger"
	"apartur/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockApartmentRepository struct {
	findByIDFunc        func(ctx context.Context, id string) (*model.Apartment, error)
	findAllFunc         func(ctx context.Context, limit int, offset int64) ([]*model.Apartment, error)
	countFunc           func(ctx context.Context) (int64, error)
	searchFunc          func(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, error)
	withCoordinatesFunc func(ctx context.Context) ([]*model.Apartment, error)
	upsertFunc          func(ctx context.Context, a *model.Apartment) (bool, error)
	setPriceFunc        func(ctx context.Context, id string, price float64) error
	deactivateFunc      func(ctx context.Context, seen []string) (int64, error)
	deactivated         [][]string
}

func (m *mockApartmentRepository) FindByID(ctx context.Context, id string) (*model.Apartment, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, apartmentserrors.ErrNotFound
}

func (m *mockApartmentRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Apartment, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Apartment{}, nil
}

func (m *mockApartmentRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockApartmentRepository) Search(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, filter)
	}
	return []*model.Apartment{}, nil
}

func (m *mockApartmentRepository) CountSearch(ctx context.Context, filter model.ApartmentFilter) (int64, error) {
	return 0, nil
}

func (m *mockApartmentRepository) FindWithCoordinates(ctx context.Context) ([]*model.Apartment, error) {
	if m.withCoordinatesFunc != nil {
		return m.withCoordinatesFunc(ctx)
	}
	return []*model.Apartment{}, nil
}

func (m *mockApartmentRepository) UpsertByRegistryNumber(ctx context.Context, a *model.Apartment) (bool, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, a)
	}
	return true, nil
}

func (m *mockApartmentRepository) DeactivateMissing(ctx context.Context, seen []string) (int64, error) {
	m.deactivated = append(m.deactivated, seen)
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, seen)
	}
	return 0, nil
}

func (m *mockApartmentRepository) SetPrice(ctx context.Context, id string, price float64) error {
	if m.setPriceFunc != nil {
		return m.setPriceFunc(ctx, id, price)
	}
	return nil
}

type mockSource struct {
	records []*model.Apartment
	err     error
}

func (m *mockSource) FetchAll(ctx context.Context) ([]*model.Apartment, error) {
	return m.records, m.err
}

func newTestService(repo *mockApartmentRepository, source Source) *apartmentService {
	cfg := &config.Config{Log: logger.Nop(), ReadTimeout: 5 * time.Second}
	return NewApartmentService(repo, source, validator.NewApartmentValidator(cfg.Log), cfg).(*apartmentService)
}

func coords(lat, lon float64) (*float64, *float64) {
	return &lat, &lon
}

func located(id string, lat, lon float64) *model.Apartment {
	a := &model.Apartment{ID: id, Name: id, Province: "Valladolid", RegistryNumber: id, Active: true}
	a.Latitude, a.Longitude = coords(lat, lon)
	return a
}

// ────────────────────────────────────────────────
// Nearest
// ────────────────────────────────────────────────

func TestNearest_OrdersByDistance(t *testing.T) {
	repo := &mockApartmentRepository{
		withCoordinatesFunc: func(ctx context.Context) ([]*model.Apartment, error) {
			return []*model.Apartment{
				located("salamanca", 40.9701, -5.6635),
				located("valladolid", 41.6523, -4.7245),
				located("leon", 42.5987, -5.5671),
				{ID: "no-coords", Name: "no-coords"},
			}, nil
		},
	}
	svc := newTestService(repo, nil)

	// Plaza Zorrilla, Valladolid
	results, err := svc.Nearest(context.Background(), 41.6488, -4.7285, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"valladolid", "salamanca", "leon"}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].ID, id)
		}
	}
	if results[0].DistanceKm > 1 {
		t.Errorf("nearest distance = %.2f km, want < 1", results[0].DistanceKm)
	}
}

func TestNearest_LimitAndMaxDistance(t *testing.T) {
	repo := &mockApartmentRepository{
		withCoordinatesFunc: func(ctx context.Context) ([]*model.Apartment, error) {
			return []*model.Apartment{
				located("salamanca", 40.9701, -5.6635),
				located("valladolid", 41.6523, -4.7245),
				located("leon", 42.5987, -5.5671),
			}, nil
		},
	}
	svc := newTestService(repo, nil)

	results, err := svc.Nearest(context.Background(), 41.6488, -4.7285, 1, 0)
	if err != nil || len(results) != 1 {
		t.Fatalf("limit 1: got %d results, err %v", len(results), err)
	}

	results, err = svc.Nearest(context.Background(), 41.6488, -4.7285, 10, 50)
	if err != nil || len(results) != 1 || results[0].ID != "valladolid" {
		t.Fatalf("maxKm 50: got %+v, err %v", results, err)
	}
}

func TestNearest_InvalidCoordinates(t *testing.T) {
	svc := newTestService(&mockApartmentRepository{
		withCoordinatesFunc: func(ctx context.Context) ([]*model.Apartment, error) {
			t.Error("repository must not be queried")
			return nil, nil
		},
	}, nil)

	for _, c := range [][2]float64{{91, 0}, {0, 181}, {-90.5, 10}} {
		_, err := svc.Nearest(context.Background(), c[0], c[1], 5, 0)
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Errorf("(%v, %v): expected INVALID_INPUT, got %v", c[0], c[1], err)
		}
	}
}

// ────────────────────────────────────────────────
// SyncFromOpenData
// ────────────────────────────────────────────────

func TestSyncFromOpenData_Counts(t *testing.T) {
	lat, lon := coords(41.65, -4.72)
	records := []*model.Apartment{
		{RegistryNumber: "VA-1", Name: "Uno", Province: "VALLADOLID", Latitude: lat, Longitude: lon},
		{RegistryNumber: "VA-2", Name: "Dos", Province: "valladolid"},
		{RegistryNumber: "", Name: "Sin registro", Province: "LEÓN"},
		{RegistryNumber: "VA-3", Name: "Tres", Province: "VALLADOLID"},
	}

	var upserted []*model.Apartment
	repo := &mockApartmentRepository{
		upsertFunc: func(ctx context.Context, a *model.Apartment) (bool, error) {
			upserted = append(upserted, a)
			switch a.RegistryNumber {
			case "VA-1":
				return true, nil
			case "VA-3":
				return false, errors.New("write conflict")
			}
			return false, nil
		},
	}
	svc := newTestService(repo, &mockSource{records: records})

	result, err := svc.SyncFromOpenData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 4 || result.Created != 1 || result.Updated != 1 || result.Failed != 2 {
		t.Errorf("result = %+v", result)
	}
	if len(upserted) != 3 {
		t.Errorf("expected 3 upserts, got %d", len(upserted))
	}
	if upserted[0].Province != "Valladolid" {
		t.Errorf("province not normalized: %q", upserted[0].Province)
	}
	if len(repo.deactivated) != 1 {
		t.Fatal("stale apartments should be deactivated after a successful sync")
	}
	seen := repo.deactivated[0]
	if len(seen) != 3 || seen[0] != "VA-1" || seen[1] != "VA-2" || seen[2] != "VA-3" {
		t.Errorf("seen registry numbers = %v", seen)
	}
}

func TestSyncFromOpenData_UnwrittenRecordsStayActive(t *testing.T) {
	catalogue := map[string]bool{"VA-1": true, "VA-3": true, "VA-4": true, "VA-OLD": true}
	records := []*model.Apartment{
		{RegistryNumber: "VA-1", Name: "Uno", Province: "Valladolid"},
		{RegistryNumber: "VA-3", Name: "Tres", Province: "Valladolid"},
		{RegistryNumber: "VA-4", Province: "Valladolid"},
	}

	repo := &mockApartmentRepository{
		upsertFunc: func(ctx context.Context, a *model.Apartment) (bool, error) {
			if a.RegistryNumber == "VA-3" {
				return false, errors.New("write timeout")
			}
			catalogue[a.RegistryNumber] = true
			return false, nil
		},
		deactivateFunc: func(ctx context.Context, seen []string) (int64, error) {
			fetched := map[string]bool{}
			for _, n := range seen {
				fetched[n] = true
			}
			var n int64
			for number, active := range catalogue {
				if active && !fetched[number] {
					catalogue[number] = false
					n++
				}
			}
			return n, nil
		},
	}
	svc := newTestService(repo, &mockSource{records: records})

	result, err := svc.SyncFromOpenData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 1 || result.Failed != 2 {
		t.Errorf("result = %+v", result)
	}

	want := map[string]bool{"VA-1": true, "VA-3": true, "VA-4": true, "VA-OLD": false}
	for number, active := range want {
		if catalogue[number] != active {
			t.Errorf("%s active = %v, want %v", number, catalogue[number], active)
		}
	}
}

func TestSyncFromOpenData_FetchFailureAborts(t *testing.T) {
	repo := &mockApartmentRepository{
		upsertFunc: func(ctx context.Context, a *model.Apartment) (bool, error) {
			t.Error("nothing should be written")
			return false, nil
		},
	}
	fetchErr := errors.New("503 from open data")
	svc := newTestService(repo, &mockSource{err: fetchErr})

	result, err := svc.SyncFromOpenData(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected no result, got %+v", result)
	}
	if len(repo.deactivated) != 0 {
		t.Error("catalogue must not be touched on fetch failure")
	}
}

func TestSyncFromOpenData_EmptyFetchKeepsCatalogue(t *testing.T) {
	repo := &mockApartmentRepository{}
	svc := newTestService(repo, &mockSource{records: []*model.Apartment{}})

	result, err := svc.SyncFromOpenData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(repo.deactivated) != 0 {
		t.Error("an empty fetch must not deactivate apartments")
	}
}

func TestSyncFromOpenData_DropsOutOfRangeCoordinates(t *testing.T) {
	lat, lon := coords(141.65, -4.72)
	var got *model.Apartment
	repo := &mockApartmentRepository{
		upsertFunc: func(ctx context.Context, a *model.Apartment) (bool, error) {
			got = a
			return true, nil
		},
	}
	svc := newTestService(repo, &mockSource{records: []*model.Apartment{
		{RegistryNumber: "VA-9", Name: "Nueve", Province: "Valladolid", Latitude: lat, Longitude: lon},
	}})

	if _, err := svc.SyncFromOpenData(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.HasCoordinates() {
		t.Errorf("invalid coordinates should be dropped, got %+v", got)
	}
}

// ────────────────────────────────────────────────
// Reads and price
// ────────────────────────────────────────────────

func TestGetByID_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		code    string
	}{
		{"not found", apartmentserrors.ErrNotFound, apperrors.CodeNotFound},
		{"invalid id", apartmentserrors.ErrInvalidID, apperrors.CodeInvalidInput},
		{"storage", errors.New("boom"), apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockApartmentRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Apartment, error) { return nil, tt.repoErr },
			}, nil)
			_, err := svc.GetByID(context.Background(), "abc")
			if !apperrors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestSearch_NormalizesFilter(t *testing.T) {
	var got model.ApartmentFilter
	svc := newTestService(&mockApartmentRepository{
		searchFunc: func(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, error) {
			got = filter
			return []*model.Apartment{}, nil
		},
	}, nil)

	_, _, err := svc.Search(context.Background(), model.ApartmentFilter{Province: "  Burgos ", Limit: 500, Offset: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Province != "Burgos" || got.Limit != config.DefaultPaginationLimit || got.Offset != 0 {
		t.Errorf("filter = %+v", got)
	}

	_, _, err = svc.Search(context.Background(), model.ApartmentFilter{MinCapacity: -2})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSetPrice(t *testing.T) {
	price := 95.0
	var stored float64
	repo := &mockApartmentRepository{
		setPriceFunc: func(ctx context.Context, id string, p float64) error {
			stored = p
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Apartment, error) {
			return &model.Apartment{ID: id, PricePerNight: &price}, nil
		},
	}
	svc := newTestService(repo, nil)

	apartment, err := svc.SetPrice(context.Background(), "65f1a2b3c4d5e6f708192a3b", &model.PriceUpdate{PricePerNight: 95})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 95 || *apartment.PricePerNight != 95 {
		t.Errorf("stored %v, returned %+v", stored, apartment)
	}

	_, err = svc.SetPrice(context.Background(), "65f1a2b3c4d5e6f708192a3b", &model.PriceUpdate{PricePerNight: -5})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}
