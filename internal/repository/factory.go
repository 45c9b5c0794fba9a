package repository

import (
	"context"
	"fmt"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/db"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

// Build wires the four repository ports according to
// config.DatabaseConfig.MetadataStore.Provider: inmemory needs
// nothing further, relational and relational+vector open a Postgres pool
// and wrap it in the memory-first cache. The returned closer is nil for
// the inmemory provider.
func Build(ctx context.Context, cfg config.DatabaseConfig) (ports.Repositories, func() error, error) {
	resourceMem := NewMemoryResourceRepository()
	itemMem := NewMemoryItemRepository()
	categoryMem := NewMemoryCategoryRepository()
	categoryItemMem := NewMemoryCategoryItemRepository()

	switch cfg.MetadataStore.Provider {
	case config.StoreInMemory:
		return ports.Repositories{
			Resources:     resourceMem,
			Items:         itemMem,
			Categories:    categoryMem,
			CategoryItems: categoryItemMem,
		}, nil, nil

	case config.StoreRelational, config.StoreRelationalVectorIndex:
		vectorNative := cfg.VectorIndex != nil && cfg.VectorIndex.Provider == config.VectorNative
		conn, err := db.New(ctx, cfg.MetadataStore.DSN, vectorNative)
		if err != nil {
			return ports.Repositories{}, nil, fmt.Errorf("connect metadata store: %w", err)
		}
		if cfg.MetadataStore.DDLMode == config.DDLCreate {
			if err := conn.Migrate(ctx); err != nil {
				conn.Close()
				return ports.Repositories{}, nil, fmt.Errorf("migrate metadata store: %w", err)
			}
		}
		return ports.Repositories{
			Resources:     NewRelationalResourceRepository(resourceMem, conn),
			Items:         NewRelationalItemRepository(itemMem, conn),
			Categories:    NewRelationalCategoryRepository(categoryMem, conn),
			CategoryItems: NewRelationalCategoryItemRepository(categoryItemMem, conn),
		}, conn.Close, nil

	default:
		return ports.Repositories{}, nil, fmt.Errorf("unknown metadata_store provider %q", cfg.MetadataStore.Provider)
	}
}
