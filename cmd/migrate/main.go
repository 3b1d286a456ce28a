package main

import (
	"context"
	"os"
	"time"

	mongoMigration "apartur/internal/migrations/mongo"
	"apartur/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	if !migrate() {
		os.Exit(1)
	}
}

func migrate() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		return false
	}
	cfg.Log.Info("Migration completed")
	return true
}
