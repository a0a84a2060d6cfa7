package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/config"
	"github.com/lii16com/arkilino/internal/repository"
	"github.com/lii16com/arkilino/internal/repository/file"
	"github.com/lii16com/arkilino/internal/repository/postgres"
)

// Open returns the document store selected by cfg.Store.Backend, ready for
// use: the file backend has its document created, the Postgres backend its
// schema migrated. The returned close func releases the backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.DocumentStore, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendFile, "":
		store := file.NewDocumentStore(cfg.Store.Path, logger)
		if err := store.Ensure(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create document file: %w", err)
		}
		logger.Info("Using file document store", zap.String("path", store.Path()))
		return store, func() error { return nil }, nil

	case config.BackendPostgres:
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Using postgres document store")
		store := postgres.NewDocumentStore(db, logger)
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
