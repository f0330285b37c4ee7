// Package archive keeps JSON run reports in blob storage
package archive

import (
	"context"
	"fmt"

	"github.com/trendzee/live-trends/internal/config"
)

// Archive defines the contract for run report storage
type Archive interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Open returns the archive selected by cfg.ArchiveDriver, or nil for "none"
func Open(ctx context.Context, cfg *config.Config) (Archive, error) {
	switch cfg.ArchiveDriver {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalArchive(cfg.ArchiveDir)
	case "azure":
		return NewAzureArchive(ctx, cfg.StorageAccount, cfg.StorageContainer)
	}
	return nil, fmt.Errorf("unknown archive driver %q", cfg.ArchiveDriver)
}
