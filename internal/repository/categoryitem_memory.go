package repository

import (
	"context"
	"time"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/repository/memory"
	"github.com/corewell/memoryd/internal/scope"
)

// MemoryCategoryItemRepository is the `inmemory` metadata_store provider
// for CategoryItem edges, and the cache layer behind the relational
// providers.
type MemoryCategoryItemRepository struct {
	store *memory.Store[*memcore.CategoryItem]
}

func NewMemoryCategoryItemRepository() *MemoryCategoryItemRepository {
	return &MemoryCategoryItemRepository{
		store: memory.New(func(e *memcore.CategoryItem) string { return e.ID }),
	}
}

func (m *MemoryCategoryItemRepository) Create(ctx context.Context, e *memcore.CategoryItem) error {
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	return m.store.Set(ctx, e)
}

func (m *MemoryCategoryItemRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.CategoryItem, error) {
	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.InvalidInput, "category item not found", err)
	}
	if !scope.Equal(e.Scope, sc) {
		return nil, memerr.New(memerr.InvalidInput, "category item not found in requested scope")
	}
	return e, nil
}

func (m *MemoryCategoryItemRepository) List(ctx context.Context, where ports.Where) ([]*memcore.CategoryItem, error) {
	prog, err := scope.Compile(where)
	if err != nil {
		return nil, err
	}
	all, _ := m.store.All(ctx)
	out := make([]*memcore.CategoryItem, 0, len(all))
	for _, e := range all {
		fields := scope.ToFields(e.Scope)
		fields["id"] = e.ID
		fields["item_id"] = e.ItemID
		fields["category_id"] = e.CategoryID
		ok, err := prog.Matches(fields)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryCategoryItemRepository) Update(ctx context.Context, e *memcore.CategoryItem) error {
	existing, err := m.store.Get(ctx, e.ID)
	if err != nil {
		return memerr.Wrap(memerr.InvalidInput, "category item not found", err)
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now()
	return m.store.Set(ctx, e)
}

func (m *MemoryCategoryItemRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	e, err := m.GetByID(ctx, id, sc)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, e.ID)
}

// DeleteByItemID removes every edge referencing itemID, used by the
// delete-item cascade.
func (m *MemoryCategoryItemRepository) DeleteByItemID(ctx context.Context, itemID string, sc memcore.Scope) error {
	edges, err := m.store.Filter(ctx, func(e *memcore.CategoryItem) bool {
		return e.ItemID == itemID && scope.Equal(e.Scope, sc)
	})
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := m.store.Delete(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}
