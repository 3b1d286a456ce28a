package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/gofrs/flock"
)

const (
	LastSyncFileName = "last_sync.json"
	HistoryFileName  = "sync_history.json"
	historyGuardName = "sync_history.json.guard"

	historyGuardTimeout = 5 * time.Second
	historyGuardRetry   = 10 * time.Millisecond
)

// FileStore keeps state as JSON files next to the sync lock. Writes go to a
// temp file that is renamed over the target. History appends also hold an
// flock guard so processes sharing the directory do not drop entries.
type FileStore struct {
	dir          string
	historyLimit int
	log          *logger.Logger
	mu           sync.Mutex
}

func NewFileStore(dir string, historyLimit int, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sync data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, historyLimit: historyLimit, log: log}, nil
}

func (s *FileStore) LastSync(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marker model.LastSyncMarker
	found, err := s.readJSON(LastSyncFileName, &marker)
	if err != nil || !found || marker.Timestamp.IsZero() {
		return nil, err
	}
	return &marker.Timestamp, nil
}

func (s *FileStore) SetLastSync(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeJSON(LastSyncFileName, model.LastSyncMarker{Timestamp: t.UTC()})
}

func (s *FileStore) AppendHistory(ctx context.Context, entry model.SyncHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockHistory(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := s.readHistory()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if s.historyLimit > 0 && len(entries) > s.historyLimit {
		entries = entries[len(entries)-s.historyLimit:]
	}
	return s.writeJSON(HistoryFileName, entries)
}

func (s *FileStore) History(_ context.Context, limit int) ([]model.SyncHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readHistory()
	if err != nil {
		return nil, err
	}
	return newestFirst(entries, limit), nil
}

func (s *FileStore) lockHistory(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, historyGuardTimeout)
	defer cancel()

	guard := flock.New(filepath.Join(s.dir, historyGuardName))
	locked, err := guard.TryLockContext(ctx, historyGuardRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to lock sync history: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock sync history: %w", ctx.Err())
	}
	return func() {
		if err := guard.Unlock(); err != nil {
			s.log.Warn("Failed to unlock sync history guard", "error", err)
		}
	}, nil
}

// readHistory returns entries oldest first. A corrupt file is logged and
// treated as empty so the next append rewrites it.
func (s *FileStore) readHistory() ([]model.SyncHistoryEntry, error) {
	var entries []model.SyncHistoryEntry
	if _, err := s.readJSON(HistoryFileName, &entries); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			s.log.Warn("Discarding corrupt sync history", "path", filepath.Join(s.dir, HistoryFileName), "error", err)
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) readJSON(name string, target any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, filepath.Join(s.dir, name))
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
