package repository

import (
	"context"
	"fmt"
	"time"

	"apartur/pkg/config"
	"apartur/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Reservation_locks"

// ReservationLockRepository stores per-apartment advisory locks.
// Create returns a duplicate key error while another holder's lock is live.
type ReservationLockRepository interface {
	Create(ctx context.Context, lock *model.ReservationLock) error
	Delete(ctx context.Context, lockID, owner string) error
}

type mongoReservationLockRepository struct {
	collection *mongo.Collection
}

func NewReservationLockRepository(cfg *config.Config) ReservationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Create first clears an expired lock with the same id, since the TTL
// monitor only sweeps about once a minute.
func (r *mongoReservationLockRepository) Create(ctx context.Context, lock *model.ReservationLock) error {
	now := time.Now().UTC()
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": now}}); err != nil {
		return fmt.Errorf("failed to clear expired reservation lock: %w", err)
	}

	lock.CreatedAt = now
	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		return err
	}
	return nil
}

// Delete only removes the lock if it is still held by owner.
func (r *mongoReservationLockRepository) Delete(ctx context.Context, lockID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	return err
}
