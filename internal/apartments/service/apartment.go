package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	apartmentserrors "apartur/internal/apartments/errors"
	"apartur/internal/apartments/repository"
	"apartur/internal/apartments/validator"
	"apartur/pkg/config"
	apperrors "apartur/pkg/errors"
	"apartur/pkg/geo"
	"apartur/pkg/model"
	"apartur/pkg/sanitizer"
)

const (
	DefaultNearestLimit = 10
	MaxNearestLimit     = 50
)

// Source yields the full apartment catalogue from the open-data registry.
type Source interface {
	FetchAll(ctx context.Context) ([]*model.Apartment, error)
}

type ApartmentService interface {
	GetByID(ctx context.Context, id string) (*model.Apartment, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Apartment, int64, error)
	Search(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, int64, error)
	Nearest(ctx context.Context, lat, lon float64, limit int, maxKm float64) ([]*model.ApartmentDistance, error)
	SetPrice(ctx context.Context, id string, update *model.PriceUpdate) (*model.Apartment, error)
	SyncFromOpenData(ctx context.Context) (*model.SyncResult, error)
}

type apartmentService struct {
	repo      repository.ApartmentRepository
	source    Source
	validator *validator.ApartmentValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewApartmentService(
	repo repository.ApartmentRepository,
	source Source,
	validator *validator.ApartmentValidator,
	cfg *config.Config,
) ApartmentService {
	return &apartmentService{
		repo:      repo,
		source:    source,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *apartmentService) GetByID(ctx context.Context, id string) (*model.Apartment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Apartment ID cannot be empty")
	}

	apartment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err, id, "Failed to retrieve apartment")
	}
	return apartment, nil
}

func (s *apartmentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Apartment, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return s.list(
		func() (int64, error) { return s.repo.Count(ctx) },
		func() ([]*model.Apartment, error) { return s.repo.FindAll(ctx, limit, offset) },
	)
}

func (s *apartmentService) Search(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, int64, error) {
	filter.Province = sanitizer.TrimAndNormalize(filter.Province)
	filter.Municipality = sanitizer.TrimAndNormalize(filter.Municipality)
	filter.Query = sanitizer.TrimAndNormalize(filter.Query)
	if filter.MinCapacity < 0 {
		return nil, 0, apperrors.InvalidInput("min_capacity cannot be negative")
	}
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)

	apartments, count, err := s.list(
		func() (int64, error) { return s.repo.CountSearch(ctx, filter) },
		func() ([]*model.Apartment, error) { return s.repo.Search(ctx, filter) },
	)
	if err != nil {
		return nil, 0, err
	}

	s.cfg.Log.Debug("Apartment search completed",
		"province", filter.Province,
		"municipality", filter.Municipality,
		"query", filter.Query,
		"count", len(apartments),
		"total_count", count,
	)
	return apartments, count, nil
}

// Nearest returns active apartments with coordinates ordered by distance to
// (lat, lon). maxKm <= 0 means no distance bound.
func (s *apartmentService) Nearest(ctx context.Context, lat, lon float64, limit int, maxKm float64) ([]*model.ApartmentDistance, error) {
	origin := geo.Point{Lat: lat, Lon: lon}
	if err := origin.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error()).
			WithDetails(map[string]any{"reason": apartmentserrors.ErrInvalidCoordinates.Error()})
	}
	if limit <= 0 {
		limit = DefaultNearestLimit
	}
	limit = min(limit, MaxNearestLimit)

	candidates, err := s.repo.FindWithCoordinates(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to load apartments with coordinates", "error", err)
		return nil, apperrors.Internal("Failed to retrieve apartments", err)
	}

	results := make([]*model.ApartmentDistance, 0, len(candidates))
	for _, a := range candidates {
		if !a.HasCoordinates() {
			continue
		}
		d := geo.DistanceKm(origin, geo.Point{Lat: *a.Latitude, Lon: *a.Longitude})
		if maxKm > 0 && d > maxKm {
			continue
		}
		results = append(results, &model.ApartmentDistance{Apartment: *a, DistanceKm: d})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *apartmentService) SetPrice(ctx context.Context, id string, update *model.PriceUpdate) (*model.Apartment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Apartment ID cannot be empty")
	}
	if err := s.validator.ValidatePrice(update); err != nil {
		return nil, apperrors.Validation("Invalid price", map[string]any{"error": err.Error()})
	}

	if err := s.repo.SetPrice(ctx, id, update.PricePerNight); err != nil {
		return nil, mapRepositoryError(err, id, "Failed to update apartment price")
	}

	s.cfg.Log.Info("Apartment price updated", "id", id, "price_per_night", update.PricePerNight)
	return s.GetByID(ctx, id)
}

// SyncFromOpenData upserts the registry catalogue. A fetch failure aborts the
// run; invalid or unwritable records are counted and skipped. Apartments
// whose registry number is absent from the fetch are deactivated; a record
// that was fetched but not written keeps its current state.
func (s *apartmentService) SyncFromOpenData(ctx context.Context) (*model.SyncResult, error) {
	started := s.now()

	records, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open data: %w", err)
	}

	result := &model.SyncResult{}
	seen := make([]string, 0, len(records))
	for _, apartment := range records {
		if err := ctx.Err(); err != nil {
			result.Duration = s.now().Sub(started)
			return result, fmt.Errorf("sync interrupted after %d records: %w", result.Processed, err)
		}
		result.Processed++

		s.sanitize(apartment)
		if apartment.RegistryNumber != "" {
			seen = append(seen, apartment.RegistryNumber)
		}
		if err := s.validator.Validate(apartment); err != nil {
			result.Failed++
			s.cfg.Log.Debug("Skipping invalid open-data record",
				"registry_number", apartment.RegistryNumber,
				"error", err,
			)
			continue
		}

		created, err := s.repo.UpsertByRegistryNumber(ctx, apartment)
		if err != nil {
			result.Failed++
			s.cfg.Log.Warn("Failed to upsert apartment",
				"registry_number", apartment.RegistryNumber,
				"error", err,
			)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	// An empty or fully failed fetch must not wipe the catalogue.
	if result.Created+result.Updated > 0 {
		deactivated, err := s.repo.DeactivateMissing(ctx, seen)
		if err != nil {
			s.cfg.Log.Warn("Failed to deactivate apartments missing from the registry", "error", err)
		} else if deactivated > 0 {
			s.cfg.Log.Info("Deactivated apartments missing from the registry", "count", deactivated)
		}
	}

	result.Duration = s.now().Sub(started)
	s.cfg.Log.Info("Open-data sync finished",
		"processed", result.Processed,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}

// --- Helpers ---

func (s *apartmentService) list(
	count func() (int64, error),
	find func() ([]*model.Apartment, error),
) ([]*model.Apartment, int64, error) {
	var total int64
	var apartments []*model.Apartment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count()
	}()

	go func() {
		defer wg.Done()
		apartments, errFind = find()
	}()

	wg.Wait()
	if errCount != nil {
		s.cfg.Log.Error("Failed to count apartments", "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count apartments", errCount)
	}
	if errFind != nil {
		s.cfg.Log.Error("Failed to list apartments", "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve apartments", errFind)
	}
	return apartments, total, nil
}

func (s *apartmentService) sanitize(a *model.Apartment) {
	a.RegistryNumber = sanitizer.TrimAndNormalize(a.RegistryNumber)
	a.Name = sanitizer.NormalizeName(a.Name)
	a.Category = sanitizer.TrimAndNormalize(a.Category)
	a.Province = sanitizer.NormalizeProvince(a.Province)
	a.Municipality = sanitizer.NormalizeProvince(a.Municipality)
	a.Locality = sanitizer.NormalizeProvince(a.Locality)
	a.Address = sanitizer.TrimAndNormalize(a.Address)
	a.PostalCode = sanitizer.NormalizePostalCode(a.PostalCode)
	a.Phone = sanitizer.NormalizePhoneList(a.Phone)
	a.Email = sanitizer.NormalizeEmail(a.Email)
	a.Website = sanitizer.NormalizeURL(a.Website)
	if a.HasCoordinates() {
		if err := (geo.Point{Lat: *a.Latitude, Lon: *a.Longitude}).Validate(); err != nil {
			a.Latitude, a.Longitude = nil, nil
		}
	} else {
		a.Latitude, a.Longitude = nil, nil
	}
}

func mapRepositoryError(err error, id, message string) error {
	if errors.Is(err, apartmentserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Apartment", id)
	}
	if errors.Is(err, apartmentserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid apartment ID format")
	}
	return apperrors.Internal(message, err)
}
