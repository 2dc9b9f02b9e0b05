package session

import (
	"context"
	"fmt"
	"strings"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and configures a Store.
type StoreConfig struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
	Pool        PoolConfig
}

// Open opens the store named by cfg.Driver. An empty driver means SQLite.
func Open(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case DriverPostgres, "postgresql", "pgx":
		return OpenPostgres(ctx, cfg.PostgresURL, cfg.Pool)
	default:
		return nil, fmt.Errorf("session: unknown store driver %q", cfg.Driver)
	}
}
