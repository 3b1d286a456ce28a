package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apartmentserrors "apartur/internal/apartments/errors"
	"apartur/internal/reservations/availability"
	reservationserrors "apartur/internal/reservations/errors"
	"apartur/internal/reservations/repository"
	"apartur/internal/reservations/validator"
	"apartur/pkg/config"
	apperrors "apartur/pkg/errors"
	"apartur/pkg/kafka"
	"apartur/pkg/model"
	"apartur/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationCompleted = "reservation.completed"
	EventReservationDeleted   = "reservation.deleted"
)

const (
	lockAttempts = 5
	lockBackoff  = 50 * time.Millisecond
)

// ApartmentReader is the slice of the apartments repository reservations need.
type ApartmentReader interface {
	FindByID(ctx context.Context, id string) (*model.Apartment, error)
}

type ReservationService interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	SearchByApartment(ctx context.Context, apartmentID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	Update(ctx context.Context, id string, updates *model.ReservationUpdate) (*model.Reservation, error)
	Confirm(ctx context.Context, id string) (*model.Reservation, error)
	Cancel(ctx context.Context, id string) (*model.Reservation, error)
	Complete(ctx context.Context, id string) (*model.Reservation, error)
	Delete(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, apartmentID string, entry, exit time.Time, excludeID string) (*model.AvailabilityResult, error)
}

type reservationService struct {
	repo       repository.ReservationRepository
	lockRepo   repository.ReservationLockRepository
	apartments ApartmentReader
	checker    *availability.Checker
	validator  *validator.ReservationValidator
	publisher  kafka.Publisher
	cfg        *config.Config
	now        func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	apartments ApartmentReader,
	validator *validator.ReservationValidator,
	publisher kafka.Publisher,
	cfg *config.Config,
) ReservationService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &reservationService{
		repo:       repo,
		lockRepo:   lockRepo,
		apartments: apartments,
		checker:    availability.NewChecker(repo),
		validator:  validator,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation) error {
	s.applyDefaults(reservation)
	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return err
	}
	if reservation.Status != model.ReservationStatusPending && reservation.Status != model.ReservationStatusConfirmed {
		return apperrors.Validation("Reservation validation failed", map[string]any{
			"error": "new reservations must be pending or confirmed",
		})
	}
	if reservation.Entry.Before(model.TruncateToDay(s.now())) {
		return apperrors.Validation("Reservation validation failed", map[string]any{
			"error": "entry cannot be in the past",
		})
	}

	apartment, err := s.loadApartment(ctx, reservation.ApartmentID)
	if err != nil {
		return err
	}
	if err := s.checkApartment(apartment, reservation); err != nil {
		return err
	}
	if reservation.Price == 0 && apartment.PricePerNight != nil {
		reservation.Price = float64(reservation.Nights()) * *apartment.PricePerNight
	}

	release, err := s.acquireApartmentLock(ctx, reservation.ApartmentID)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyAvailability(sessCtx, reservation, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation",
			"apartment_id", reservation.ApartmentID,
			"entry", reservation.Entry,
			"exit", reservation.Exit,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"apartment_id", reservation.ApartmentID,
		"entry", reservation.Entry,
		"exit", reservation.Exit,
		"nights", reservation.Nights(),
	)
	s.publish(ctx, EventReservationCreated, reservation)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err, id, "Failed to retrieve reservation")
	}
	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return s.list(
		func() (int64, error) { return s.repo.Count(ctx) },
		func() ([]*model.Reservation, error) { return s.repo.FindAll(ctx, limit, offset) },
		"reservations",
	)
}

func (s *reservationService) SearchByApartment(ctx context.Context, apartmentID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if apartmentID == "" {
		return nil, 0, apperrors.InvalidInput("ApartmentID is required")
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, 0, apperrors.InvalidRange("from must be before to")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	reservations, count, err := s.list(
		func() (int64, error) { return s.repo.CountByApartment(ctx, apartmentID, from, to) },
		func() ([]*model.Reservation, error) {
			return s.repo.FindByApartment(ctx, apartmentID, from, to, limit, offset)
		},
		"reservations by apartment",
	)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, 0, apperrors.InvalidInput("Invalid apartment ID format")
		}
		return nil, 0, err
	}

	s.cfg.Log.Debug("Reservation search completed",
		"apartment_id", apartmentID,
		"count", len(reservations),
		"total_count", count,
	)
	return reservations, count, nil
}

func (s *reservationService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	userID = sanitizer.TrimAndNormalize(userID)
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("UserID is required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return s.list(
		func() (int64, error) { return s.repo.CountByUser(ctx, userID) },
		func() ([]*model.Reservation, error) { return s.repo.FindByUser(ctx, userID, limit, offset) },
		"reservations by user",
	)
}

func (s *reservationService) Update(ctx context.Context, id string, updates *model.ReservationUpdate) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err, id, "Failed to check reservation existence")
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}
	if updates.Status != "" && !model.CanTransition(existing.Status, updates.Status) {
		return nil, transitionConflict(existing.Status, updates.Status)
	}

	merged := s.mergeReservationUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	datesChanged := !merged.Entry.Equal(existing.Entry) || !merged.Exit.Equal(existing.Exit)
	if datesChanged || merged.Guests != existing.Guests {
		apartment, err := s.loadApartment(ctx, merged.ApartmentID)
		if err != nil {
			return nil, err
		}
		if err := s.checkApartment(apartment, merged); err != nil {
			return nil, err
		}
		if datesChanged && updates.Price == nil && apartment.PricePerNight != nil {
			merged.Price = float64(merged.Nights()) * *apartment.PricePerNight
		}
	}

	recheck := merged.IsActive() && datesChanged
	if recheck {
		release, err := s.acquireApartmentLock(ctx, merged.ApartmentID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if recheck {
			if err := s.verifyAvailability(sessCtx, merged, id); err != nil {
				return err
			}
		}
		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			return mapRepositoryError(err, id, "Failed to update reservation")
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation updated successfully", "id", id, "dates_changed", datesChanged)
	s.publish(ctx, EventReservationUpdated, merged)
	return merged, nil
}

func (s *reservationService) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(ctx, id, model.ReservationStatusConfirmed, EventReservationConfirmed)
}

func (s *reservationService) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(ctx, id, model.ReservationStatusCancelled, EventReservationCancelled)
}

func (s *reservationService) Complete(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(ctx, id, model.ReservationStatusCompleted, EventReservationCompleted)
}

func (s *reservationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	var deleted *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return mapRepositoryError(err, id, "Failed to delete reservation")
		}
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return mapRepositoryError(err, id, "Failed to delete reservation")
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Reservation deleted successfully", "id", id)
	s.publish(ctx, EventReservationDeleted, deleted)
	return nil
}

func (s *reservationService) CheckAvailability(ctx context.Context, apartmentID string, entry, exit time.Time, excludeID string) (*model.AvailabilityResult, error) {
	if apartmentID == "" {
		return nil, apperrors.InvalidInput("ApartmentID is required")
	}
	entry, exit, err := availability.ValidateRange(entry, exit)
	if err != nil {
		return nil, apperrors.InvalidRange("entry must be before exit")
	}
	if _, err := s.loadApartment(ctx, apartmentID); err != nil {
		return nil, err
	}

	available, err := s.checker.IsAvailable(ctx, apartmentID, entry, exit, excludeID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid apartment ID format")
		}
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	return &model.AvailabilityResult{
		ApartmentID: apartmentID,
		Entry:       entry,
		Exit:        exit,
		Available:   available,
	}, nil
}

// --- Helpers ---

func (s *reservationService) transition(ctx context.Context, id, to, eventType string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err, id, "Failed to retrieve reservation")
	}
	if existing.Status == to {
		return existing, nil
	}
	if !model.CanTransition(existing.Status, to) {
		return nil, transitionConflict(existing.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, id, existing.Status, to); err != nil {
		if errors.Is(err, reservationserrors.ErrInvalidTransition) {
			return nil, apperrors.Conflict("Reservation was modified concurrently, please retry")
		}
		return nil, mapRepositoryError(err, id, "Failed to update reservation status")
	}

	from := existing.Status
	existing.Status = to
	existing.UpdatedAt = s.now().UTC()

	s.cfg.Log.Info("Reservation status changed", "id", id, "from", from, "to", to)
	s.publish(ctx, eventType, existing)
	return existing, nil
}

func (s *reservationService) list(
	count func() (int64, error),
	find func() ([]*model.Reservation, error),
	what string,
) ([]*model.Reservation, int64, error) {
	var total int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count()
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = find()
	}()

	wg.Wait()
	for _, err := range []error{errCount, errFind} {
		if err == nil {
			continue
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, 0, err
		}
		s.cfg.Log.Error("Failed to list "+what, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve "+what, err)
	}

	return reservations, total, nil
}

func (s *reservationService) applyDefaults(r *model.Reservation) {
	if r.Status == "" {
		r.Status = model.ReservationStatusPending
	}
}

func (s *reservationService) sanitize(r *model.Reservation) {
	r.UserID = sanitizer.TrimAndNormalize(r.UserID)
	r.GuestName = sanitizer.NormalizeName(r.GuestName)
	r.GuestEmail = sanitizer.NormalizeEmail(r.GuestEmail)
	if phone := sanitizer.NormalizePhone(r.GuestPhone); phone != "" {
		r.GuestPhone = phone
	}
	if !r.Entry.IsZero() {
		r.Entry = model.TruncateToDay(r.Entry)
	}
	if !r.Exit.IsZero() {
		r.Exit = model.TruncateToDay(r.Exit)
	}
}

func (s *reservationService) mergeReservationUpdates(existing *model.Reservation, updates *model.ReservationUpdate) *model.Reservation {
	merged := *existing

	if updates.GuestName != "" {
		merged.GuestName = updates.GuestName
	}
	if updates.GuestPhone != "" {
		merged.GuestPhone = updates.GuestPhone
	}
	if updates.GuestEmail != "" {
		merged.GuestEmail = updates.GuestEmail
	}
	if updates.Entry != nil {
		merged.Entry = *updates.Entry
	}
	if updates.Exit != nil {
		merged.Exit = *updates.Exit
	}
	if updates.Guests != nil {
		merged.Guests = *updates.Guests
	}
	if updates.Price != nil {
		merged.Price = *updates.Price
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}

	return &merged
}

// validate rejects inverted or zero-night stays as InvalidRange before any
// field-level validation runs.
func (s *reservationService) validate(r *model.Reservation) error {
	if !r.Entry.IsZero() && !r.Exit.IsZero() {
		if _, _, err := availability.ValidateRange(r.Entry, r.Exit); err != nil {
			return apperrors.InvalidRange("entry must be before exit").
				WithDetails(map[string]any{
					"entry": r.Entry.Format(time.DateOnly),
					"exit":  r.Exit.Format(time.DateOnly),
				})
		}
	}

	if err := s.validator.Validate(r); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	if s.cfg.MaxStayNights > 0 && r.Nights() > s.cfg.MaxStayNights {
		return apperrors.Validation("Reservation validation failed", map[string]any{
			"error": fmt.Sprintf("stay of %d nights exceeds the maximum of %d", r.Nights(), s.cfg.MaxStayNights),
		})
	}
	if s.cfg.MaxGuests > 0 && r.Guests > s.cfg.MaxGuests {
		return apperrors.Validation("Reservation validation failed", map[string]any{
			"error": fmt.Sprintf("guests (%d) exceed the maximum of %d", r.Guests, s.cfg.MaxGuests),
		})
	}
	return nil
}

func (s *reservationService) loadApartment(ctx context.Context, apartmentID string) (*model.Apartment, error) {
	apartment, err := s.apartments.FindByID(ctx, apartmentID)
	if err != nil {
		if errors.Is(err, apartmentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Apartment", apartmentID)
		}
		if errors.Is(err, apartmentserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid apartment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve apartment", err)
	}
	return apartment, nil
}

func (s *reservationService) checkApartment(apartment *model.Apartment, r *model.Reservation) error {
	if !apartment.Active {
		return apperrors.Conflict("Apartment is not accepting reservations")
	}
	if apartment.Capacity > 0 && r.Guests > apartment.Capacity {
		return apperrors.Validation(reservationserrors.ErrCapacityExceeded.Error(), map[string]any{
			"guests":   r.Guests,
			"capacity": apartment.Capacity,
		})
	}
	return nil
}

func (s *reservationService) verifyAvailability(ctx context.Context, r *model.Reservation, excludeID string) error {
	conflict, err := s.checker.FindConflict(ctx, r.ApartmentID, r.Entry, r.Exit, excludeID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrInvalidRange) {
			return apperrors.InvalidRange("entry must be before exit")
		}
		return apperrors.Internal("Failed to check existing reservations", err)
	}
	if conflict != nil {
		return apperrors.Conflict(fmt.Sprintf(
			"Apartment is already booked from %s to %s",
			conflict.Entry.Format(time.DateOnly),
			conflict.Exit.Format(time.DateOnly),
		)).WithDetails(map[string]any{
			"conflicting_reservation_id": conflict.ID,
			"reason":                     reservationserrors.ErrTimeConflict.Error(),
		})
	}
	return nil
}

// acquireApartmentLock serializes check-then-write per apartment across API
// instances. The returned func releases the lock and never fails the request.
func (s *reservationService) acquireApartmentLock(ctx context.Context, apartmentID string) (func(), error) {
	lock := &model.ReservationLock{
		ID:    fmt.Sprintf("reservation_lock_%s", apartmentID),
		Owner: uuid.NewString(),
	}

	var err error
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.Timeout("Timed out waiting for apartment lock")
			case <-time.After(lockBackoff):
			}
		}

		lock.ExpiresAt = s.now().UTC().Add(s.cfg.ReservationLockTTL)
		if err = s.lockRepo.Create(ctx, lock); err == nil {
			return func() {
				if releaseErr := s.lockRepo.Delete(context.WithoutCancel(ctx), lock.ID, lock.Owner); releaseErr != nil {
					s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lock.ID, "error", releaseErr)
				}
			}, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Internal("Failed to acquire reservation lock", err)
		}
	}

	s.cfg.Log.Warn("Reservation lock busy", "lock_id", lock.ID, "attempts", lockAttempts)
	return nil, apperrors.Conflict("This apartment is currently being booked by another request. Please try again.").
		WithDetails(map[string]any{"reason": reservationserrors.ErrLockHeld.Error()})
}

type reservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	ApartmentID   string    `json:"apartment_id"`
	UserID        string    `json:"user_id,omitempty"`
	Status        string    `json:"status"`
	Entry         time.Time `json:"entry"`
	Exit          time.Time `json:"exit"`
	Guests        int       `json:"guests"`
	Price         float64   `json:"price"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// publish is best effort: the reservation is already committed.
func (s *reservationService) publish(ctx context.Context, eventType string, r *model.Reservation) {
	if r == nil {
		return
	}
	event := reservationEvent{
		ReservationID: r.ID,
		ApartmentID:   r.ApartmentID,
		UserID:        r.UserID,
		Status:        r.Status,
		Entry:         r.Entry,
		Exit:          r.Exit,
		Guests:        r.Guests,
		Price:         r.Price,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, eventType, r.ApartmentID, event); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", r.ID,
			"error", err,
		)
	}
}

func mapRepositoryError(err error, id, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	if errors.Is(err, reservationserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid reservation ID format")
	}
	return apperrors.Internal(message, err)
}

func transitionConflict(from, to string) error {
	return apperrors.Conflict(fmt.Sprintf("Cannot change reservation status from %s to %s", from, to)).
		WithDetails(map[string]any{
			"reason": reservationserrors.ErrInvalidTransition.Error(),
			"from":   from,
			"to":     to,
		})
}
