package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/repository/memory"
	"github.com/corewell/memoryd/internal/scope"
)

// MemoryItemRepository is the `inmemory` metadata_store provider for
// MemoryItems, and the cache layer behind the relational providers.
type MemoryItemRepository struct {
	store *memory.Store[*memcore.MemoryItem]
	dim   int
}

func NewMemoryItemRepository() *MemoryItemRepository {
	return &MemoryItemRepository{
		store: memory.New(func(i *memcore.MemoryItem) string { return i.ID }),
	}
}

func (m *MemoryItemRepository) Create(ctx context.Context, item *memcore.MemoryItem) error {
	if err := checkDimension(m.dim, item.Embedding); err != nil {
		return err
	}
	if len(item.Embedding) > 0 {
		m.dim = len(item.Embedding)
	}
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	return m.store.Set(ctx, item)
}

func (m *MemoryItemRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.MemoryItem, error) {
	item, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.InvalidInput, "memory item not found", err)
	}
	if !scope.Equal(item.Scope, sc) {
		return nil, memerr.New(memerr.InvalidInput, "memory item not found in requested scope")
	}
	return item, nil
}

func (m *MemoryItemRepository) List(ctx context.Context, where ports.Where) ([]*memcore.MemoryItem, error) {
	prog, err := scope.Compile(where)
	if err != nil {
		return nil, err
	}
	all, _ := m.store.All(ctx)
	out := make([]*memcore.MemoryItem, 0, len(all))
	for _, item := range all {
		fields := scope.ToFields(item.Scope)
		fields["id"] = item.ID
		fields["memory_type"] = string(item.MemoryType)
		if item.ResourceID != nil {
			fields["resource_id"] = *item.ResourceID
		}
		ok, err := prog.Matches(fields)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MemoryItemRepository) Update(ctx context.Context, item *memcore.MemoryItem) error {
	existing, err := m.store.Get(ctx, item.ID)
	if err != nil {
		return memerr.Wrap(memerr.InvalidInput, "memory item not found", err)
	}
	if err := checkDimension(m.dim, item.Embedding); err != nil {
		return err
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now()
	return m.store.Set(ctx, item)
}

func (m *MemoryItemRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	item, err := m.GetByID(ctx, id, sc)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, item.ID)
}

// Touch increments the hit counter feeding the salience composite's
// reinforcement term.
func (m *MemoryItemRepository) Touch(ctx context.Context, id string, sc memcore.Scope) error {
	item, err := m.GetByID(ctx, id, sc)
	if err != nil {
		return err
	}
	item.Hits++
	item.UpdatedAt = time.Now()
	return m.store.Set(ctx, item)
}

func (m *MemoryItemRepository) SimilaritySearch(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredItem, error) {
	candidates, err := m.List(ctx, where)
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
	out := make([]memcore.ScoredItem, len(scoredItems))
	for i, s := range scoredItems {
		out[i] = memcore.ScoredItem{Item: *s.record, Score: s.score}
	}
	return out, nil
}
