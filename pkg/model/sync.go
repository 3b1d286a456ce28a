package model

import "time"

// SyncLock is the content of the sync lock file. It exists only while a sync runs.
type SyncLock struct {
	PID       int       `json:"pid"`
	Host      string    `json:"host"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *SyncLock) IsStale(now time.Time, staleAfter time.Duration) bool {
	return now.Sub(l.CreatedAt) > staleAfter
}

type LastSyncMarker struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type SyncResult struct {
	Processed int           `json:"processed" bson:"processed"`
	Created   int           `json:"created" bson:"created"`
	Updated   int           `json:"updated" bson:"updated"`
	Failed    int           `json:"failed" bson:"failed"`
	Duration  time.Duration `json:"duration" bson:"duration"`
}

type SyncHistoryEntry struct {
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Success   bool        `json:"success" bson:"success"`
	Skipped   bool        `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Forced    bool        `json:"forced,omitempty" bson:"forced,omitempty"`
	Result    *SyncResult `json:"result,omitempty" bson:"result,omitempty"`
	Error     string      `json:"error,omitempty" bson:"error,omitempty"`
}

type AutoSyncResult struct {
	Success   bool        `json:"success"`
	Skipped   bool        `json:"skipped"`
	Reason    string      `json:"reason,omitempty"`
	Result    *SyncResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type SyncStatus struct {
	LastSync     *time.Time `json:"last_sync"`
	NextSyncTime time.Time  `json:"next_sync_time"`
	IsLocked     bool       `json:"is_locked"`
	NeedsSync    bool       `json:"needs_sync"`
}

// SyncRequest is the payload of a sync trigger, over HTTP or Kafka.
type SyncRequest struct {
	Force       bool   `json:"force"`
	RequestedBy string `json:"requested_by,omitempty"`
}
