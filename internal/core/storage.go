package core

import (
	"context"
	"fmt"

	"bandkeeper/internal/config"
	"bandkeeper/internal/infra/persistence/memory"
	"bandkeeper/internal/infra/persistence/postgres"
	"bandkeeper/internal/infra/persistence/sqlite"
	"bandkeeper/pkg/domain"
)

// StorageDriver identifies a durable backend implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenBackend selects the backend named by cfg.Driver, defaulting to sqlite.
func OpenBackend(ctx context.Context, cfg config.Storage) (domain.Backend, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
