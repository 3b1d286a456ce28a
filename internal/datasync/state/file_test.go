package state

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LastSync(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), 100, logger.Nop())
	require.NoError(t, err)

	last, err := store.LastSync(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "no marker before the first sync")

	ts := time.Date(2024, 3, 15, 21, 45, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSync(ctx, ts))

	last, err = store.LastSync(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, ts.Equal(*last))
}

func TestFileStore_HistoryCappedNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), 100, logger.Nop())
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		require.NoError(t, store.AppendHistory(ctx, model.SyncHistoryEntry{
			Timestamp: base.AddDate(0, 0, i),
			Success:   true,
		}))
	}

	all, err := store.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 100)
	assert.True(t, all[0].Timestamp.Equal(base.AddDate(0, 0, 119)), "newest entry first")
	assert.True(t, all[99].Timestamp.Equal(base.AddDate(0, 0, 20)), "oldest entries dropped")

	recent, err := store.History(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}

func TestFileStore_CorruptHistoryIsReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, 100, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFileName), []byte("{not json"), 0o644))

	entries, err := store.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.AppendHistory(ctx, model.SyncHistoryEntry{Timestamp: time.Now(), Success: false, Error: "boom"}))
	entries, err = store.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_WritesLeaveNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir, 100, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, store.SetLastSync(ctx, time.Now()))
	require.NoError(t, store.AppendHistory(ctx, model.SyncHistoryEntry{Timestamp: time.Now(), Success: true}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{LastSyncFileName, HistoryFileName, historyGuardName}, names)
}

func TestFileStore_AppendsFromSeparateStoresAreKept(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stores := make([]*FileStore, 2)
	for i := range stores {
		store, err := NewFileStore(dir, 100, logger.Nop())
		require.NoError(t, err)
		stores[i] = store
	}

	const perStore = 20
	base := time.Date(2024, 3, 16, 22, 30, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i, store := range stores {
		wg.Add(1)
		go func(i int, store *FileStore) {
			defer wg.Done()
			for j := 0; j < perStore; j++ {
				ts := base.Add(time.Duration(i*perStore+j) * time.Second)
				assert.NoError(t, store.AppendHistory(ctx, model.SyncHistoryEntry{Timestamp: ts, Forced: i == 1}))
			}
		}(i, store)
	}
	wg.Wait()

	history, err := stores[0].History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2*perStore, "no append may overwrite another")
}
