package repository

import (
	"context"
	"log/slog"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

// CategoryDB is the subset of *db.DB the relational category repository needs.
type CategoryDB interface {
	CreateMemoryCategory(ctx context.Context, c *memcore.MemoryCategory) error
	GetMemoryCategory(ctx context.Context, id string) (*memcore.MemoryCategory, error)
	GetMemoryCategoryByName(ctx context.Context, normalizedName string, scope map[string]string) (*memcore.MemoryCategory, error)
	ListMemoryCategories(ctx context.Context, where ports.Where) ([]*memcore.MemoryCategory, error)
	UpdateMemoryCategory(ctx context.Context, c *memcore.MemoryCategory) error
	DeleteMemoryCategory(ctx context.Context, id string) error
	SimilaritySearchMemoryCategories(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredCategory, error)
	IsVectorNative() bool
}

// RelationalCategoryRepository is the `relational` and `relational+vector`
// metadata_store provider for MemoryCategories.
type RelationalCategoryRepository struct {
	mem *MemoryCategoryRepository
	db  CategoryDB
}

func NewRelationalCategoryRepository(mem *MemoryCategoryRepository, db CategoryDB) *RelationalCategoryRepository {
	return &RelationalCategoryRepository{mem: mem, db: db}
}

func (r *RelationalCategoryRepository) Create(ctx context.Context, c *memcore.MemoryCategory) error {
	if err := r.mem.Create(ctx, c); err != nil {
		return err
	}
	return r.db.CreateMemoryCategory(ctx, c)
}

func (r *RelationalCategoryRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.MemoryCategory, error) {
	if c, err := r.mem.GetByID(ctx, id, sc); err == nil {
		return c, nil
	}
	c, err := r.db.GetMemoryCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.store.Set(ctx, c)
	return c, nil
}

func (r *RelationalCategoryRepository) GetByName(ctx context.Context, normalizedName string, sc memcore.Scope) (*memcore.MemoryCategory, error) {
	if c, err := r.mem.GetByName(ctx, normalizedName, sc); err == nil {
		return c, nil
	}
	c, err := r.db.GetMemoryCategoryByName(ctx, normalizedName, sc)
	if err != nil {
		return nil, err
	}
	_ = r.mem.store.Set(ctx, c)
	return c, nil
}

func (r *RelationalCategoryRepository) List(ctx context.Context, where ports.Where) ([]*memcore.MemoryCategory, error) {
	out, err := r.db.ListMemoryCategories(ctx, where)
	if err == nil {
		return out, nil
	}
	slog.Warn("db list memory_categories failed, falling back to in-memory cache", "err", err)
	return r.mem.List(ctx, where)
}

func (r *RelationalCategoryRepository) Update(ctx context.Context, c *memcore.MemoryCategory) error {
	_ = r.mem.Update(ctx, c)
	return r.db.UpdateMemoryCategory(ctx, c)
}

func (r *RelationalCategoryRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	_ = r.mem.Delete(ctx, id, sc)
	return r.db.DeleteMemoryCategory(ctx, id)
}

func (r *RelationalCategoryRepository) SimilaritySearch(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredCategory, error) {
	if r.db.IsVectorNative() {
		out, err := r.db.SimilaritySearchMemoryCategories(ctx, embedding, k, where)
		if err == nil {
			return out, nil
		}
		slog.Warn("native vector search failed, falling back to brute force", "err", err)
	}
	candidates, err := r.db.ListMemoryCategories(ctx, where)
	if err != nil {
		return nil, err
	}
	scoredItems := make([]scored[*memcore.MemoryCategory], 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		score, err := cosine(embedding, c.Embedding)
		if err != nil {
			slog.Warn("category similarity search: skipping candidate", "category_id", c.ID, "err", err)
			continue
		}
		scoredItems = append(scoredItems, scored[*memcore.MemoryCategory]{record: c, score: score})
	}
	scoredItems = topK(scoredItems, k, func(a, b scored[*memcore.MemoryCategory]) bool { return a.score > b.score })
	result := make([]memcore.ScoredCategory, len(scoredItems))
	for i, s := range scoredItems {
		result[i] = memcore.ScoredCategory{Category: *s.record, Score: s.score}
	}
	return result, nil
}
