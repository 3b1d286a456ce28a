package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	reservationserrors "apartur/internal/reservations/errors"
	"apartur/pkg/model"
)

const aptID = "65f1c0ffee00000000000001"

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func res(id, entry, exit, status string) *model.Reservation {
	return &model.Reservation{
		ID:          id,
		ApartmentID: aptID,
		Entry:       day(entry),
		Exit:        day(exit),
		Status:      status,
	}
}

type mockReader struct {
	findFunc func(ctx context.Context, apartmentID string, entry, exit time.Time) ([]*model.Reservation, error)
	calls    int
}

func (m *mockReader) FindActiveOverlapping(ctx context.Context, apartmentID string, entry, exit time.Time) ([]*model.Reservation, error) {
	m.calls++
	if m.findFunc != nil {
		return m.findFunc(ctx, apartmentID, entry, exit)
	}
	return nil, nil
}

func snapshotReader(rs ...*model.Reservation) *mockReader {
	return &mockReader{
		findFunc: func(context.Context, string, time.Time, time.Time) ([]*model.Reservation, error) {
			return rs, nil
		},
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd string
		want                       bool
	}{
		{"identical", "2024-03-15", "2024-03-18", "2024-03-15", "2024-03-18", true},
		{"partial overlap at end", "2024-03-15", "2024-03-18", "2024-03-17", "2024-03-20", true},
		{"partial overlap at start", "2024-03-17", "2024-03-20", "2024-03-15", "2024-03-18", true},
		{"a contains b", "2024-03-10", "2024-03-25", "2024-03-15", "2024-03-18", true},
		{"b contains a", "2024-03-15", "2024-03-18", "2024-03-10", "2024-03-25", true},
		{"adjacent after", "2024-03-15", "2024-03-18", "2024-03-18", "2024-03-20", false},
		{"adjacent before", "2024-03-18", "2024-03-20", "2024-03-15", "2024-03-18", false},
		{"disjoint", "2024-03-01", "2024-03-05", "2024-03-10", "2024-03-12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(day(tt.aStart), day(tt.aEnd), day(tt.bStart), day(tt.bEnd))
			if got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlaps_Symmetric(t *testing.T) {
	a1, a2 := day("2024-03-15"), day("2024-03-18")
	b1, b2 := day("2024-03-17"), day("2024-03-20")
	if Overlaps(a1, a2, b1, b2) != Overlaps(b1, b2, a1, a2) {
		t.Error("Overlaps should be symmetric")
	}
}

func TestAvailable(t *testing.T) {
	existing := res("r1", "2024-03-15", "2024-03-18", model.ReservationStatusConfirmed)

	tests := []struct {
		name      string
		snapshot  []*model.Reservation
		entry     string
		exit      string
		excludeID string
		want      bool
	}{
		{"empty snapshot", nil, "2024-03-15", "2024-03-18", "", true},
		{"overlapping stay blocks", []*model.Reservation{existing}, "2024-03-17", "2024-03-20", "", false},
		{"checkout day is free", []*model.Reservation{existing}, "2024-03-18", "2024-03-20", "", true},
		{"excluded reservation ignored", []*model.Reservation{existing}, "2024-03-16", "2024-03-19", "r1", true},
		{"cancelled does not block", []*model.Reservation{res("r2", "2024-03-15", "2024-03-18", model.ReservationStatusCancelled)}, "2024-03-15", "2024-03-18", "", true},
		{"completed does not block", []*model.Reservation{res("r3", "2024-03-15", "2024-03-18", model.ReservationStatusCompleted)}, "2024-03-16", "2024-03-17", "", true},
		{"pending blocks", []*model.Reservation{res("r4", "2024-03-15", "2024-03-18", model.ReservationStatusPending)}, "2024-03-16", "2024-03-17", "", false},
		{"nil entries skipped", []*model.Reservation{nil}, "2024-03-15", "2024-03-18", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Available(tt.snapshot, day(tt.entry), day(tt.exit), tt.excludeID)
			if got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFirstConflict_EarliestWins(t *testing.T) {
	later := res("later", "2024-03-20", "2024-03-25", model.ReservationStatusConfirmed)
	earlier := res("earlier", "2024-03-12", "2024-03-16", model.ReservationStatusPending)

	got := FirstConflict([]*model.Reservation{later, earlier}, day("2024-03-10"), day("2024-03-30"), "")
	if got == nil || got.ID != "earlier" {
		t.Fatalf("FirstConflict() = %v, want earlier", got)
	}
}

func TestChecker_IsAvailable_Scenario(t *testing.T) {
	reader := snapshotReader(res("r1", "2024-03-15", "2024-03-18", model.ReservationStatusConfirmed))
	checker := NewChecker(reader)
	ctx := context.Background()

	ok, err := checker.IsAvailable(ctx, aptID, day("2024-03-17"), day("2024-03-20"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("2024-03-17 to 2024-03-20 should be unavailable")
	}

	ok, err = checker.IsAvailable(ctx, aptID, day("2024-03-18"), day("2024-03-20"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("2024-03-18 to 2024-03-20 should be available")
	}
}

func TestChecker_InvalidRangeBeforeRead(t *testing.T) {
	tests := []struct {
		name        string
		entry, exit string
	}{
		{"zero nights", "2024-03-15", "2024-03-15"},
		{"inverted", "2024-03-18", "2024-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := snapshotReader()
			checker := NewChecker(reader)

			ok, err := checker.IsAvailable(context.Background(), aptID, day(tt.entry), day(tt.exit), "")
			if !errors.Is(err, reservationserrors.ErrInvalidRange) {
				t.Fatalf("error = %v, want ErrInvalidRange", err)
			}
			if ok {
				t.Error("an invalid range must never be reported available")
			}
			if reader.calls != 0 {
				t.Errorf("storage read %d times, want 0", reader.calls)
			}
		})
	}
}

func TestChecker_SameDayTimesAreZeroNights(t *testing.T) {
	checker := NewChecker(snapshotReader())
	entry := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	exit := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)

	if _, err := checker.IsAvailable(context.Background(), aptID, entry, exit, ""); !errors.Is(err, reservationserrors.ErrInvalidRange) {
		t.Errorf("error = %v, want ErrInvalidRange", err)
	}
}

func TestChecker_IgnoresOtherApartments(t *testing.T) {
	other := res("r9", "2024-03-15", "2024-03-18", model.ReservationStatusConfirmed)
	other.ApartmentID = "65f1c0ffee00000000000099"

	checker := NewChecker(snapshotReader(other))
	ok, err := checker.IsAvailable(context.Background(), aptID, day("2024-03-15"), day("2024-03-18"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("reservations of other apartments must not block")
	}
}

func TestChecker_ExcludeReservation(t *testing.T) {
	checker := NewChecker(snapshotReader(res("r1", "2024-03-15", "2024-03-18", model.ReservationStatusConfirmed)))

	ok, err := checker.IsAvailable(context.Background(), aptID, day("2024-03-16"), day("2024-03-19"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("rescheduling a reservation over its own dates should be allowed")
	}
}

func TestChecker_ReaderError(t *testing.T) {
	boom := errors.New("mongo down")
	checker := NewChecker(&mockReader{
		findFunc: func(context.Context, string, time.Time, time.Time) ([]*model.Reservation, error) {
			return nil, boom
		},
	})

	ok, err := checker.IsAvailable(context.Background(), aptID, day("2024-03-15"), day("2024-03-18"), "")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped reader error", err)
	}
	if ok {
		t.Error("should not report available on read failure")
	}
}

func TestChecker_PassesTruncatedRangeToReader(t *testing.T) {
	var gotEntry, gotExit time.Time
	checker := NewChecker(&mockReader{
		findFunc: func(_ context.Context, _ string, entry, exit time.Time) ([]*model.Reservation, error) {
			gotEntry, gotExit = entry, exit
			return nil, nil
		},
	})

	entry := time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)
	exit := time.Date(2024, 3, 18, 11, 0, 0, 0, time.UTC)
	if _, err := checker.IsAvailable(context.Background(), aptID, entry, exit, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotEntry.Equal(day("2024-03-15")) || !gotExit.Equal(day("2024-03-18")) {
		t.Errorf("reader got [%v, %v)", gotEntry, gotExit)
	}
}
