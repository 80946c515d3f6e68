package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"user-ingest/internal/config"
	"user-ingest/internal/storage"
)

const startupPingTimeout = 5 * time.Second

// initStorage builds the shared pool. An unreachable server is logged, not
// fatal: requests and messages report it when they need the store.
func initStorage(log *zap.Logger, cfg *config.Config) (*storage.Storage, error) {
	db, err := storage.Open(cfg.Database.URL, storage.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		log.Warn("Database is not reachable yet", zap.Error(err))
	} else {
		log.Info("PostgreSQL connected")
	}

	return db, nil
}
