package core

import (
	"context"
	"fmt"

	"recordcore/internal/config"
	"recordcore/internal/infra/persistence/memory"
	"recordcore/internal/infra/persistence/mongo"
	"recordcore/internal/infra/persistence/postgres"
	"recordcore/internal/infra/persistence/sqlite"
	"recordcore/pkg/domain"
)

// OpenPersistentStore selects a backend from the storage configuration.
// An empty driver selects sqlite.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *domain.RulesEngine, opts ...memory.Option) (domain.PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.StorageSQLite
	}
	switch driver {
	case config.StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.URL, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageMongo:
		store, err := mongo.Open(ctx, cfg.URL, cfg.Database, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
