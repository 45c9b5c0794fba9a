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

// MemoryCategoryRepository is the `inmemory` metadata_store provider for
// MemoryCategories, and the cache layer behind the relational providers.
type MemoryCategoryRepository struct {
	store *memory.Store[*memcore.MemoryCategory]
	dim   int
}

func NewMemoryCategoryRepository() *MemoryCategoryRepository {
	return &MemoryCategoryRepository{
		store: memory.New(func(c *memcore.MemoryCategory) string { return c.ID }),
	}
}

func (m *MemoryCategoryRepository) Create(ctx context.Context, c *memcore.MemoryCategory) error {
	if err := checkDimension(m.dim, c.Embedding); err != nil {
		return err
	}
	if len(c.Embedding) > 0 {
		m.dim = len(c.Embedding)
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	return m.store.Set(ctx, c)
}

func (m *MemoryCategoryRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.MemoryCategory, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.InvalidInput, "category not found", err)
	}
	if !scope.Equal(c.Scope, sc) {
		return nil, memerr.New(memerr.InvalidInput, "category not found in requested scope")
	}
	return c, nil
}

// GetByName looks up a category by its normalized name within scope,
// used by the categorize step's get-or-create path.
func (m *MemoryCategoryRepository) GetByName(ctx context.Context, normalizedName string, sc memcore.Scope) (*memcore.MemoryCategory, error) {
	all, _ := m.store.All(ctx)
	for _, c := range all {
		if memcore.NormalizeCategoryName(c.Name) == normalizedName && scope.Equal(c.Scope, sc) {
			return c, nil
		}
	}
	return nil, memerr.New(memerr.InvalidInput, "category not found")
}

func (m *MemoryCategoryRepository) List(ctx context.Context, where ports.Where) ([]*memcore.MemoryCategory, error) {
	prog, err := scope.Compile(where)
	if err != nil {
		return nil, err
	}
	all, _ := m.store.All(ctx)
	out := make([]*memcore.MemoryCategory, 0, len(all))
	for _, c := range all {
		fields := scope.ToFields(c.Scope)
		fields["id"] = c.ID
		fields["name"] = c.Name
		ok, err := prog.Matches(fields)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryCategoryRepository) Update(ctx context.Context, c *memcore.MemoryCategory) error {
	existing, err := m.store.Get(ctx, c.ID)
	if err != nil {
		return memerr.Wrap(memerr.InvalidInput, "category not found", err)
	}
	if err := checkDimension(m.dim, c.Embedding); err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	return m.store.Set(ctx, c)
}

func (m *MemoryCategoryRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	c, err := m.GetByID(ctx, id, sc)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, c.ID)
}

func (m *MemoryCategoryRepository) SimilaritySearch(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredCategory, error) {
	candidates, err := m.List(ctx, where)
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
	out := make([]memcore.ScoredCategory, len(scoredItems))
	for i, s := range scoredItems {
		out[i] = memcore.ScoredCategory{Category: *s.record, Score: s.score}
	}
	return out, nil
}
