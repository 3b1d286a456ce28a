package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apartur/pkg/config"
	"apartur/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StateCollectionName   = "Sync_state"
	HistoryCollectionName = "Sync_history"

	lastSyncDocumentID = "last_sync"
)

// MongoStore lets several hosts share sync state. The lock itself stays on
// the local file system.
type MongoStore struct {
	cfg     *config.Config
	state   *mongo.Collection
	history *mongo.Collection
}

func NewMongoStore(cfg *config.Config) *MongoStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &MongoStore{
		cfg:     cfg,
		state:   db.Collection(StateCollectionName),
		history: db.Collection(HistoryCollectionName),
	}
}

func (s *MongoStore) LastSync(ctx context.Context) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var marker model.LastSyncMarker
	err := s.state.FindOne(ctx, bson.M{"_id": lastSyncDocumentID}).Decode(&marker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	}
	ts := marker.Timestamp.UTC()
	return &ts, nil
}

func (s *MongoStore) SetLastSync(ctx context.Context, t time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	_, err := s.state.UpdateOne(ctx,
		bson.M{"_id": lastSyncDocumentID},
		bson.M{"$set": bson.M{"timestamp": t.UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write last sync: %w", err)
	}
	return nil
}

// AppendHistory inserts entry and deletes everything beyond the newest
// SyncHistoryLimit entries. A non-positive limit keeps everything.
func (s *MongoStore) AppendHistory(ctx context.Context, entry model.SyncHistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if _, err := s.history.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append sync history: %w", err)
	}

	if s.cfg.SyncHistoryLimit <= 0 {
		return nil
	}
	cursor, err := s.history.Find(ctx, bson.M{}, overflowOptions(s.cfg.SyncHistoryLimit))
	if err != nil {
		return fmt.Errorf("failed to find old sync history: %w", err)
	}
	var overflow []bson.M
	if err := cursor.All(ctx, &overflow); err != nil {
		return fmt.Errorf("failed to decode old sync history: %w", err)
	}
	ids := overflowIDs(overflow)
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.history.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to trim sync history: %w", err)
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, limit int) ([]model.SyncHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(newestFirstSort())
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.history.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync history: %w", err)
	}

	entries := []model.SyncHistoryEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode sync history: %w", err)
	}
	return entries, nil
}

// overflowOptions selects the ids of entries past the newest keep.
func overflowOptions(keep int) *options.FindOptions {
	return options.Find().
		SetSort(newestFirstSort()).
		SetSkip(int64(keep)).
		SetProjection(bson.M{"_id": 1})
}

func overflowIDs(docs []bson.M) []any {
	ids := make([]any, 0, len(docs))
	for _, doc := range docs {
		if id, ok := doc["_id"]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func newestFirstSort() bson.D {
	return bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}
}
