package repository

import (
	"context"
	"log/slog"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

// ItemDB is the subset of *db.DB the relational item repository needs.
type ItemDB interface {
	CreateMemoryItem(ctx context.Context, item *memcore.MemoryItem) error
	GetMemoryItem(ctx context.Context, id string) (*memcore.MemoryItem, error)
	ListMemoryItems(ctx context.Context, where ports.Where) ([]*memcore.MemoryItem, error)
	UpdateMemoryItem(ctx context.Context, item *memcore.MemoryItem) error
	DeleteMemoryItem(ctx context.Context, id string) error
	SimilaritySearchMemoryItems(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredItem, error)
	IsVectorNative() bool
}

// RelationalItemRepository is the `relational` and `relational+vector`
// metadata_store provider for MemoryItems.
type RelationalItemRepository struct {
	mem *MemoryItemRepository
	db  ItemDB
}

func NewRelationalItemRepository(mem *MemoryItemRepository, db ItemDB) *RelationalItemRepository {
	return &RelationalItemRepository{mem: mem, db: db}
}

func (r *RelationalItemRepository) Create(ctx context.Context, item *memcore.MemoryItem) error {
	if err := r.mem.Create(ctx, item); err != nil {
		return err
	}
	return r.db.CreateMemoryItem(ctx, item)
}

func (r *RelationalItemRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.MemoryItem, error) {
	if item, err := r.mem.GetByID(ctx, id, sc); err == nil {
		return item, nil
	}
	item, err := r.db.GetMemoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.store.Set(ctx, item)
	return item, nil
}

func (r *RelationalItemRepository) List(ctx context.Context, where ports.Where) ([]*memcore.MemoryItem, error) {
	out, err := r.db.ListMemoryItems(ctx, where)
	if err == nil {
		return out, nil
	}
	slog.Warn("db list memory_items failed, falling back to in-memory cache", "err", err)
	return r.mem.List(ctx, where)
}

func (r *RelationalItemRepository) Update(ctx context.Context, item *memcore.MemoryItem) error {
	_ = r.mem.Update(ctx, item)
	return r.db.UpdateMemoryItem(ctx, item)
}

func (r *RelationalItemRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	_ = r.mem.Delete(ctx, id, sc)
	return r.db.DeleteMemoryItem(ctx, id)
}

// Touch increments an item's hit counter in both the cache and Postgres.
func (r *RelationalItemRepository) Touch(ctx context.Context, id string, sc memcore.Scope) error {
	item, err := r.GetByID(ctx, id, sc)
	if err != nil {
		return err
	}
	item.Hits++
	return r.Update(ctx, item)
}

func (r *RelationalItemRepository) SimilaritySearch(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredItem, error) {
	if r.db.IsVectorNative() {
		out, err := r.db.SimilaritySearchMemoryItems(ctx, embedding, k, where)
		if err == nil {
			return out, nil
		}
		slog.Warn("native vector search failed, falling back to brute force", "err", err)
	}
	candidates, err := r.db.ListMemoryItems(ctx, where)
	if err != nil {
		return nil, err
	}
	scoredItems := make([]scored[*memcore.MemoryItem], 0, len(candidates))
	for _, item := range candidates {
		if len(item.Embedding) == 0 {
			continue
		}
		score, err := cosine(embedding, item.Embedding)
		if err != nil {
			slog.Warn("item similarity search: skipping candidate", "item_id", item.ID, "err", err)
			continue
		}
		scoredItems = append(scoredItems, scored[*memcore.MemoryItem]{record: item, score: score})
	}
	scoredItems = topK(scoredItems, k, func(a, b scored[*memcore.MemoryItem]) bool { return a.score > b.score })
	result := make([]memcore.ScoredItem, len(scoredItems))
	for i, s := range scoredItems {
		result[i] = memcore.ScoredItem{Item: *s.record, Score: s.score}
	}
	return result, nil
}
