// Package state persists the last successful sync time and the sync history.
package state

import (
	"context"
	"time"

	"apartur/pkg/model"
)

// Store keeps the last-sync marker and a bounded history. History returns
// entries newest first.
type Store interface {
	LastSync(ctx context.Context) (*time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
	AppendHistory(ctx context.Context, entry model.SyncHistoryEntry) error
	History(ctx context.Context, limit int) ([]model.SyncHistoryEntry, error)
}

func newestFirst(entries []model.SyncHistoryEntry, limit int) []model.SyncHistoryEntry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.SyncHistoryEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}
