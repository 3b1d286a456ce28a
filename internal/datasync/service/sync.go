package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	dserrors "apartur/internal/datasync/errors"
	"apartur/internal/datasync/state"
	"apartur/pkg/config"
	"apartur/pkg/kafka"
	"apartur/pkg/model"
)

const (
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
	EventSyncRequested = "sync.requested"

	ReasonLocked        = "sync already in progress"
	ReasonSyncedToday   = "already synced today"
	ReasonBeforeCutoff  = "before daily sync cutoff"
	syncEventKey        = "apartments"
	defaultHistoryLimit = 20
)

// Synchronizer runs one pass of the open-data import.
type Synchronizer interface {
	SyncFromOpenData(ctx context.Context) (*model.SyncResult, error)
}

// Locker is the cross-process sync lock. IsLocked and Acquire reclaim a
// stale lock before deciding.
type Locker interface {
	IsLocked(ctx context.Context) (bool, error)
	Acquire(ctx context.Context) (*model.SyncLock, error)
	Release(ctx context.Context, token string) error
}

type SyncManager interface {
	NeedsSync(ctx context.Context) (bool, error)
	ExecuteAutoSync(ctx context.Context) *model.AutoSyncResult
	ExecuteSync(ctx context.Context, force bool) *model.AutoSyncResult
	GetStatus(ctx context.Context) (*model.SyncStatus, error)
	History(ctx context.Context, limit int) ([]model.SyncHistoryEntry, error)
}

type syncManager struct {
	lock         Locker
	store        state.Store
	synchronizer Synchronizer
	publisher    kafka.Publisher
	cfg          *config.Config
	now          func() time.Time
}

func NewSyncManager(
	lock Locker,
	store state.Store,
	synchronizer Synchronizer,
	publisher kafka.Publisher,
	cfg *config.Config,
) SyncManager {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &syncManager{
		lock:         lock,
		store:        store,
		synchronizer: synchronizer,
		publisher:    publisher,
		cfg:          cfg,
		now:          time.Now,
	}
}

// NeedsSync is true when no live lock exists, the last successful sync was
// not today (local calendar) and the local clock is at or past the cutoff.
func (m *syncManager) NeedsSync(ctx context.Context) (bool, error) {
	reason, err := m.skipReason(ctx)
	if err != nil {
		return false, err
	}
	return reason == "", nil
}

func (m *syncManager) ExecuteAutoSync(ctx context.Context) *model.AutoSyncResult {
	return m.ExecuteSync(ctx, false)
}

// ExecuteSync runs the synchronizer under the lock. force skips the daily
// window checks but never a live lock. Failures are reported in the result.
func (m *syncManager) ExecuteSync(ctx context.Context, force bool) *model.AutoSyncResult {
	if !force {
		reason, err := m.skipReason(ctx)
		if err != nil {
			m.cfg.Log.Error("Failed to evaluate sync window", "error", err)
			return m.failure(err, nil)
		}
		if reason != "" {
			m.cfg.Log.Debug("Sync skipped", "reason", reason)
			return m.skipped(reason)
		}
	}

	held, err := m.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, dserrors.ErrLockHeld) {
			m.cfg.Log.Info("Sync skipped, lock held", "forced", force)
			if force {
				m.record(ctx, model.SyncHistoryEntry{Timestamp: m.now().UTC(), Skipped: true, Forced: true, Error: ReasonLocked})
			}
			return m.skipped(ReasonLocked)
		}
		m.cfg.Log.Error("Failed to acquire sync lock", "error", err)
		return m.failure(err, nil)
	}
	// Once the lock is held the run outlives the caller: an HTTP request
	// timeout or a disconnect must not cut an import short. SyncTimeout
	// bounds the synchronizer instead.
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := m.lock.Release(ctx, held.Token); err != nil {
			m.cfg.Log.Error("Failed to release sync lock", "token", held.Token, "error", err)
		}
	}()

	// Another process may have finished a run between the window check and
	// Acquire.
	if !force {
		last, err := m.store.LastSync(ctx)
		if err != nil {
			m.cfg.Log.Error("Failed to read last sync", "error", err)
			return m.failure(err, nil)
		}
		if m.syncedToday(last, m.now()) {
			return m.skipped(ReasonSyncedToday)
		}
	}

	m.cfg.Log.Info("Sync started", "forced", force, "token", held.Token)
	result, err := m.runSynchronizer(ctx)
	finished := m.now().UTC()

	if err != nil {
		m.cfg.Log.Error("Sync failed", "forced", force, "error", err)
		m.record(ctx, model.SyncHistoryEntry{Timestamp: finished, Success: false, Forced: force, Result: result, Error: err.Error()})
		m.publish(ctx, EventSyncFailed, map[string]any{"forced": force, "error": err.Error(), "timestamp": finished})
		return m.failure(err, result)
	}

	if err := m.store.SetLastSync(ctx, finished); err != nil {
		m.cfg.Log.Error("Failed to persist last sync marker", "error", err)
	}
	m.record(ctx, model.SyncHistoryEntry{Timestamp: finished, Success: true, Forced: force, Result: result})
	m.publish(ctx, EventSyncCompleted, map[string]any{"forced": force, "result": result, "timestamp": finished})

	m.cfg.Log.Info("Sync completed",
		"forced", force,
		"processed", result.Processed,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
	)
	return &model.AutoSyncResult{
		Success:   true,
		Result:    result,
		Timestamp: finished,
	}
}

func (m *syncManager) GetStatus(ctx context.Context) (*model.SyncStatus, error) {
	locked, err := m.lock.IsLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect sync lock: %w", err)
	}
	last, err := m.store.LastSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	}

	now := m.now()
	return &model.SyncStatus{
		LastSync:     last,
		NextSyncTime: m.nextSyncTime(last, now),
		IsLocked:     locked,
		NeedsSync:    !locked && m.windowReason(last, now) == "",
	}, nil
}

func (m *syncManager) History(ctx context.Context, limit int) ([]model.SyncHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, m.cfg.SyncHistoryLimit)
	return m.store.History(ctx, limit)
}

// --- Helpers ---

func (m *syncManager) skipReason(ctx context.Context) (string, error) {
	locked, err := m.lock.IsLocked(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to inspect sync lock: %w", err)
	}
	if locked {
		return ReasonLocked, nil
	}
	last, err := m.store.LastSync(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last sync: %w", err)
	}
	return m.windowReason(last, m.now()), nil
}

func (m *syncManager) windowReason(last *time.Time, now time.Time) string {
	if m.syncedToday(last, now) {
		return ReasonSyncedToday
	}
	if now.In(m.cfg.SyncLocation).Before(m.cutoffOn(now, 0)) {
		return ReasonBeforeCutoff
	}
	return ""
}

func (m *syncManager) syncedToday(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	ly, lm, ld := last.In(m.cfg.SyncLocation).Date()
	ny, nm, nd := now.In(m.cfg.SyncLocation).Date()
	return ly == ny && lm == nm && ld == nd
}

// nextSyncTime is today's cutoff while it is still ahead and today has no
// successful sync, otherwise tomorrow's.
func (m *syncManager) nextSyncTime(last *time.Time, now time.Time) time.Time {
	today := m.cutoffOn(now, 0)
	if !m.syncedToday(last, now) && now.Before(today) {
		return today
	}
	return m.cutoffOn(now, 1)
}

func (m *syncManager) cutoffOn(now time.Time, days int) time.Time {
	hour, minute := m.cfg.CutoffClock()
	y, mo, d := now.In(m.cfg.SyncLocation).Date()
	return time.Date(y, mo, d+days, hour, minute, 0, 0, m.cfg.SyncLocation)
}

func (m *syncManager) runSynchronizer(ctx context.Context) (result *model.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.Log.Error("Sync panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("%w: panic: %v", dserrors.ErrSyncFailed, r)
		}
	}()

	if m.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.SyncTimeout)
		defer cancel()
	}

	result, err = m.synchronizer.SyncFromOpenData(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %w", dserrors.ErrSyncFailed, err)
	}
	if result == nil {
		result = &model.SyncResult{}
	}
	return result, nil
}

func (m *syncManager) record(ctx context.Context, entry model.SyncHistoryEntry) {
	if err := m.store.AppendHistory(context.WithoutCancel(ctx), entry); err != nil {
		m.cfg.Log.Error("Failed to append sync history", "error", err)
	}
}

func (m *syncManager) publish(ctx context.Context, eventType string, payload any) {
	if err := m.publisher.PublishEvent(context.WithoutCancel(ctx), eventType, syncEventKey, payload); err != nil {
		m.cfg.Log.Warn("Failed to publish sync event", "event_type", eventType, "error", err)
	}
}

func (m *syncManager) skipped(reason string) *model.AutoSyncResult {
	return &model.AutoSyncResult{
		Success:   false,
		Skipped:   true,
		Reason:    reason,
		Timestamp: m.now().UTC(),
	}
}

func (m *syncManager) failure(err error, result *model.SyncResult) *model.AutoSyncResult {
	return &model.AutoSyncResult{
		Success:   false,
		Result:    result,
		Error:     err.Error(),
		Timestamp: m.now().UTC(),
	}
}
