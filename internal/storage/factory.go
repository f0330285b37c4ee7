package storage

import (
	"context"
	"fmt"

	"github.com/trendzee/live-trends/internal/config"
)

// Open returns the trend store selected by cfg.StoreDriver
func Open(ctx context.Context, cfg *config.Config) (TrendStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
