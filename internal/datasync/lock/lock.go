// Package lock implements the advisory sync lock: a JSON lock file created
// with O_EXCL, plus an flock(2) guard file that serializes reclaim and create
// between processes sharing the data directory.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	datasyncerrors "apartur/internal/datasync/errors"
	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	LockFileName  = "sync.lock"
	GuardFileName = "sync.lock.guard"

	guardTimeout    = 5 * time.Second
	guardRetryDelay = 10 * time.Millisecond
)

type FileLock struct {
	path       string
	guardPath  string
	staleAfter time.Duration
	log        *logger.Logger
	now        func() time.Time
	pid        int
	host       string
}

func NewFileLock(dir string, staleAfter time.Duration, log *logger.Logger) (*FileLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sync data dir %s: %w", dir, err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &FileLock{
		path:       filepath.Join(dir, LockFileName),
		guardPath:  filepath.Join(dir, GuardFileName),
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
		pid:        os.Getpid(),
		host:       host,
	}, nil
}

// SetClock replaces the time source.
func (l *FileLock) SetClock(now func() time.Time) {
	l.now = now
}

func (l *FileLock) Path() string {
	return l.path
}

// Inspect returns the current lock, or nil when none exists. A lock file
// that cannot be parsed is reported with its modification time as CreatedAt.
func (l *FileLock) Inspect() (*model.SyncLock, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sync lock: %w", err)
	}

	var current model.SyncLock
	if err := json.Unmarshal(data, &current); err != nil || current.CreatedAt.IsZero() {
		info, statErr := os.Stat(l.path)
		if statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to stat sync lock: %w", statErr)
		}
		l.log.Warn("Unreadable sync lock file, using modification time", "path", l.path, "error", err)
		return &model.SyncLock{CreatedAt: info.ModTime()}, nil
	}
	return &current, nil
}

// ReclaimIfStale removes a lock older than the stale threshold and reports
// whether it did.
func (l *FileLock) ReclaimIfStale(ctx context.Context) (bool, error) {
	var reclaimed bool
	err := l.withGuard(ctx, func() error {
		var err error
		reclaimed, err = l.reclaimIfStale()
		return err
	})
	return reclaimed, err
}

// IsLocked reclaims a stale lock first, then reports whether a live one remains.
func (l *FileLock) IsLocked(ctx context.Context) (bool, error) {
	var locked bool
	err := l.withGuard(ctx, func() error {
		if _, err := l.reclaimIfStale(); err != nil {
			return err
		}
		current, err := l.Inspect()
		locked = current != nil
		return err
	})
	return locked, err
}

// Acquire creates the lock file exclusively. It returns ErrLockHeld when a
// live lock exists; a stale one is reclaimed first.
func (l *FileLock) Acquire(ctx context.Context) (*model.SyncLock, error) {
	var acquired *model.SyncLock
	err := l.withGuard(ctx, func() error {
		if _, err := l.reclaimIfStale(); err != nil {
			return err
		}

		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return datasyncerrors.ErrLockHeld
			}
			return fmt.Errorf("failed to create sync lock: %w", err)
		}

		lock := &model.SyncLock{
			PID:       l.pid,
			Host:      l.host,
			Token:     uuid.NewString(),
			CreatedAt: l.now().UTC(),
		}
		data, err := json.Marshal(lock)
		if err == nil {
			_, err = f.Write(data)
		}
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(l.path)
			return fmt.Errorf("failed to write sync lock: %w", err)
		}

		acquired = lock
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Sync lock acquired", "token", acquired.Token, "pid", acquired.PID, "host", acquired.Host)
	return acquired, nil
}

// Release removes the lock if it is still held under token. A missing lock
// is not an error: it may have been reclaimed as stale. An unreadable lock
// file has no owner to check against and is removed.
func (l *FileLock) Release(ctx context.Context, token string) error {
	return l.withGuard(ctx, func() error {
		current, err := l.Inspect()
		if err != nil {
			return err
		}
		if current == nil {
			l.log.Warn("Sync lock already gone at release", "token", token)
			return nil
		}
		if current.Token == "" {
			l.log.Warn("Removing unreadable sync lock at release", "token", token)
		} else if current.Token != token {
			return fmt.Errorf("%w: held by token %q", datasyncerrors.ErrNotLockOwner, current.Token)
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove sync lock: %w", err)
		}
		l.log.Info("Sync lock released", "token", token)
		return nil
	})
}

func (l *FileLock) reclaimIfStale() (bool, error) {
	current, err := l.Inspect()
	if err != nil || current == nil {
		return false, err
	}
	if !current.IsStale(l.now(), l.staleAfter) {
		return false, nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to remove stale sync lock: %w", err)
	}
	l.log.Warn("Reclaimed stale sync lock",
		"created_at", current.CreatedAt,
		"age", l.now().Sub(current.CreatedAt),
		"pid", current.PID,
		"host", current.Host,
	)
	return true, nil
}

// withGuard opens a fresh flock handle per call: flock(2) locks belong to the
// open file description, so separate handles also exclude each other within
// one process.
func (l *FileLock) withGuard(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, guardTimeout)
	defer cancel()

	guard := flock.New(l.guardPath)
	locked, err := guard.TryLockContext(ctx, guardRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to take sync lock guard: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to take sync lock guard: %w", ctx.Err())
	}
	defer func() {
		if err := guard.Unlock(); err != nil {
			l.log.Warn("Failed to unlock sync lock guard", "error", err)
		}
	}()

	return fn()
}
