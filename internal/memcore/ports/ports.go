// Package ports declares the narrow interfaces services depend on:
// callers hold an interface, not a concrete repository or client type.
package ports

import (
	"context"

	"github.com/corewell/memoryd/internal/memcore"
)

// Where is a scope-aware filter: scope fields plus any additional
// "key"/"key__in" predicates validated against the configured scope
// model.
type Where map[string]any

// ResourceRepository is the storage port for Resource records.
type ResourceRepository interface {
	Create(ctx context.Context, r *memcore.Resource) error
	GetByID(ctx context.Context, id string, scope memcore.Scope) (*memcore.Resource, error)
	List(ctx context.Context, where Where) ([]*memcore.Resource, error)
	Update(ctx context.Context, r *memcore.Resource) error
	Delete(ctx context.Context, id string, scope memcore.Scope) error
	SimilaritySearch(ctx context.Context, embedding []float32, k int, where Where) ([]memcore.ScoredResource, error)
}

// ItemRepository is the storage port for MemoryItem records.
type ItemRepository interface {
	Create(ctx context.Context, item *memcore.MemoryItem) error
	GetByID(ctx context.Context, id string, scope memcore.Scope) (*memcore.MemoryItem, error)
	List(ctx context.Context, where Where) ([]*memcore.MemoryItem, error)
	Update(ctx context.Context, item *memcore.MemoryItem) error
	Delete(ctx context.Context, id string, scope memcore.Scope) error
	// Touch increments the item's reinforcement counter feeding the
	// salience composite's hits term. Callers decide when a memory was
	// reinforced; neither retrieve nor update invokes this implicitly,
	// so repeated identical reads and writes stay deterministic.
	Touch(ctx context.Context, id string, scope memcore.Scope) error
	SimilaritySearch(ctx context.Context, embedding []float32, k int, where Where) ([]memcore.ScoredItem, error)
}

// CategoryRepository is the storage port for MemoryCategory records.
type CategoryRepository interface {
	Create(ctx context.Context, c *memcore.MemoryCategory) error
	GetByID(ctx context.Context, id string, scope memcore.Scope) (*memcore.MemoryCategory, error)
	GetByName(ctx context.Context, normalizedName string, scope memcore.Scope) (*memcore.MemoryCategory, error)
	List(ctx context.Context, where Where) ([]*memcore.MemoryCategory, error)
	Update(ctx context.Context, c *memcore.MemoryCategory) error
	Delete(ctx context.Context, id string, scope memcore.Scope) error
	SimilaritySearch(ctx context.Context, embedding []float32, k int, where Where) ([]memcore.ScoredCategory, error)
}

// CategoryItemRepository is the storage port for CategoryItem edges.
type CategoryItemRepository interface {
	Create(ctx context.Context, e *memcore.CategoryItem) error
	GetByID(ctx context.Context, id string, scope memcore.Scope) (*memcore.CategoryItem, error)
	List(ctx context.Context, where Where) ([]*memcore.CategoryItem, error)
	Update(ctx context.Context, e *memcore.CategoryItem) error
	Delete(ctx context.Context, id string, scope memcore.Scope) error
	// DeleteByItemID removes every edge for one item; used by the delete
	// cascade.
	DeleteByItemID(ctx context.Context, itemID string, scope memcore.Scope) error
}

// Repositories bundles the four repository ports MemoryService wires together.
type Repositories struct {
	Resources     ResourceRepository
	Items         ItemRepository
	Categories    CategoryRepository
	CategoryItems CategoryItemRepository
}
