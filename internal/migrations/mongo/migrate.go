package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apartmentsrepo "apartur/internal/apartments/repository"
	"apartur/internal/datasync/state"
	"apartur/internal/migrations/mongo/validators"
	reservationsrepo "apartur/internal/reservations/repository"
	"apartur/pkg/logger"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "apartment_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "entry", Value: 1},
			{Key: "exit", Value: 1},
		}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "entry", Value: -1}}},
	}

	// Expired advisory locks are removed by the TTL monitor; Create also
	// clears an expired lock itself since the monitor runs once a minute.
	ReservationLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	ApartmentsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "registry_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "active", Value: 1},
			{Key: "province", Value: 1},
			{Key: "municipality", Value: 1},
		}},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "registry_number", Value: 1}}},
	}

	SyncHistoryIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	collections := map[string]collectionDef{
		reservationsrepo.CollectionName: {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		reservationsrepo.LockCollectionName: {
			Indexes:   ReservationLocksIndexes,
			Validator: validators.ReservationLockValidator,
		},
		apartmentsrepo.CollectionName: {
			Indexes:   ApartmentsIndexes,
			Validator: validators.ApartmentValidator,
		},
		state.StateCollectionName: {
			Validator: validators.SyncStateValidator,
		},
		state.HistoryCollectionName: {
			Indexes:   SyncHistoryIndexes,
			Validator: validators.SyncHistoryValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied", "collections", len(collections))
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
