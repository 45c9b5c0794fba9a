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

// MemoryResourceRepository is the `inmemory` metadata_store provider for
// Resources. It is also reused as the read-through cache inside the
// relational providers.
type MemoryResourceRepository struct {
	store *memory.Store[*memcore.Resource]
	dim   int
}

func NewMemoryResourceRepository() *MemoryResourceRepository {
	return &MemoryResourceRepository{
		store: memory.New(func(r *memcore.Resource) string { return r.ID }),
	}
}

func (m *MemoryResourceRepository) Create(ctx context.Context, r *memcore.Resource) error {
	if err := checkDimension(m.dim, r.Embedding); err != nil {
		return err
	}
	if len(r.Embedding) > 0 {
		m.dim = len(r.Embedding)
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	return m.store.Set(ctx, r)
}

func (m *MemoryResourceRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.Resource, error) {
	r, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.InvalidInput, "resource not found", err)
	}
	if !scope.Equal(r.Scope, sc) {
		return nil, memerr.New(memerr.InvalidInput, "resource not found in requested scope")
	}
	return r, nil
}

func (m *MemoryResourceRepository) List(ctx context.Context, where ports.Where) ([]*memcore.Resource, error) {
	prog, err := scope.Compile(where)
	if err != nil {
		return nil, err
	}
	all, _ := m.store.All(ctx)
	out := make([]*memcore.Resource, 0, len(all))
	for _, r := range all {
		fields := scope.ToFields(r.Scope)
		fields["id"] = r.ID
		fields["modality"] = string(r.Modality)
		ok, err := prog.Matches(fields)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryResourceRepository) Update(ctx context.Context, r *memcore.Resource) error {
	existing, err := m.store.Get(ctx, r.ID)
	if err != nil {
		return memerr.Wrap(memerr.InvalidInput, "resource not found", err)
	}
	if err := checkDimension(m.dim, r.Embedding); err != nil {
		return err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()
	return m.store.Set(ctx, r)
}

func (m *MemoryResourceRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	r, err := m.GetByID(ctx, id, sc)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, r.ID)
}

func (m *MemoryResourceRepository) SimilaritySearch(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredResource, error) {
	candidates, err := m.List(ctx, where)
	if err != nil {
		return nil, err
	}
	scoredItems := make([]scored[*memcore.Resource], 0, len(candidates))
	for _, r := range candidates {
		if len(r.Embedding) == 0 {
			continue
		}
		score, err := cosine(embedding, r.Embedding)
		if err != nil {
			slog.Warn("resource similarity search: skipping candidate", "resource_id", r.ID, "err", err)
			continue
		}
		scoredItems = append(scoredItems, scored[*memcore.Resource]{record: r, score: score})
	}
	scoredItems = topK(scoredItems, k, func(a, b scored[*memcore.Resource]) bool { return a.score > b.score })
	out := make([]memcore.ScoredResource, len(scoredItems))
	for i, s := range scoredItems {
		out[i] = memcore.ScoredResource{Resource: *s.record, Score: s.score}
	}
	return out, nil
}
