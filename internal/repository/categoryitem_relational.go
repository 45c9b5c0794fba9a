package repository

import (
	"context"
	"log/slog"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

// CategoryItemDB is the subset of *db.DB the relational category-item
// repository needs.
type CategoryItemDB interface {
	CreateCategoryItem(ctx context.Context, e *memcore.CategoryItem) error
	GetCategoryItem(ctx context.Context, id string) (*memcore.CategoryItem, error)
	ListCategoryItems(ctx context.Context, where ports.Where) ([]*memcore.CategoryItem, error)
	UpdateCategoryItem(ctx context.Context, e *memcore.CategoryItem) error
	DeleteCategoryItem(ctx context.Context, id string) error
	DeleteCategoryItemsByItemID(ctx context.Context, itemID string) error
}

// RelationalCategoryItemRepository is the `relational` and
// `relational+vector` metadata_store provider for CategoryItem edges (no
// similarity search; this table has no embedding column).
type RelationalCategoryItemRepository struct {
	mem *MemoryCategoryItemRepository
	db  CategoryItemDB
}

func NewRelationalCategoryItemRepository(mem *MemoryCategoryItemRepository, db CategoryItemDB) *RelationalCategoryItemRepository {
	return &RelationalCategoryItemRepository{mem: mem, db: db}
}

func (r *RelationalCategoryItemRepository) Create(ctx context.Context, e *memcore.CategoryItem) error {
	if err := r.mem.Create(ctx, e); err != nil {
		return err
	}
	return r.db.CreateCategoryItem(ctx, e)
}

func (r *RelationalCategoryItemRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.CategoryItem, error) {
	if e, err := r.mem.GetByID(ctx, id, sc); err == nil {
		return e, nil
	}
	e, err := r.db.GetCategoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.store.Set(ctx, e)
	return e, nil
}

func (r *RelationalCategoryItemRepository) List(ctx context.Context, where ports.Where) ([]*memcore.CategoryItem, error) {
	out, err := r.db.ListCategoryItems(ctx, where)
	if err == nil {
		return out, nil
	}
	slog.Warn("db list category_items failed, falling back to in-memory cache", "err", err)
	return r.mem.List(ctx, where)
}

func (r *RelationalCategoryItemRepository) Update(ctx context.Context, e *memcore.CategoryItem) error {
	_ = r.mem.Update(ctx, e)
	return r.db.UpdateCategoryItem(ctx, e)
}

func (r *RelationalCategoryItemRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	_ = r.mem.Delete(ctx, id, sc)
	return r.db.DeleteCategoryItem(ctx, id)
}

func (r *RelationalCategoryItemRepository) DeleteByItemID(ctx context.Context, itemID string, sc memcore.Scope) error {
	_ = r.mem.DeleteByItemID(ctx, itemID, sc)
	return r.db.DeleteCategoryItemsByItemID(ctx, itemID)
}
