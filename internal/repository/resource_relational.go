package repository

import (
	"context"
	"log/slog"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

// ResourceDB is the subset of *db.DB the relational resource repository
// needs.
type ResourceDB interface {
	CreateResource(ctx context.Context, r *memcore.Resource) error
	GetResource(ctx context.Context, id string) (*memcore.Resource, error)
	ListResources(ctx context.Context, where ports.Where) ([]*memcore.Resource, error)
	UpdateResource(ctx context.Context, r *memcore.Resource) error
	DeleteResource(ctx context.Context, id string) error
	SimilaritySearchResources(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredResource, error)
	IsVectorNative() bool
}

// RelationalResourceRepository is the `relational` and `relational+vector`
// metadata_store provider for Resources. Writes go to both the in-memory
// cache and Postgres; reads try the cache first and backfill on miss.
type RelationalResourceRepository struct {
	mem *MemoryResourceRepository
	db  ResourceDB
}

func NewRelationalResourceRepository(mem *MemoryResourceRepository, db ResourceDB) *RelationalResourceRepository {
	return &RelationalResourceRepository{mem: mem, db: db}
}

func (r *RelationalResourceRepository) Create(ctx context.Context, res *memcore.Resource) error {
	if err := r.mem.Create(ctx, res); err != nil {
		return err
	}
	return r.db.CreateResource(ctx, res)
}

func (r *RelationalResourceRepository) GetByID(ctx context.Context, id string, sc memcore.Scope) (*memcore.Resource, error) {
	if res, err := r.mem.GetByID(ctx, id, sc); err == nil {
		return res, nil
	}
	res, err := r.db.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.store.Set(ctx, res)
	return res, nil
}

func (r *RelationalResourceRepository) List(ctx context.Context, where ports.Where) ([]*memcore.Resource, error) {
	out, err := r.db.ListResources(ctx, where)
	if err == nil {
		return out, nil
	}
	slog.Warn("db list resources failed, falling back to in-memory cache", "err", err)
	return r.mem.List(ctx, where)
}

func (r *RelationalResourceRepository) Update(ctx context.Context, res *memcore.Resource) error {
	_ = r.mem.Update(ctx, res)
	return r.db.UpdateResource(ctx, res)
}

func (r *RelationalResourceRepository) Delete(ctx context.Context, id string, sc memcore.Scope) error {
	_ = r.mem.Delete(ctx, id, sc)
	return r.db.DeleteResource(ctx, id)
}

func (r *RelationalResourceRepository) SimilaritySearch(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredResource, error) {
	if r.db.IsVectorNative() {
		out, err := r.db.SimilaritySearchResources(ctx, embedding, k, where)
		if err == nil {
			return out, nil
		}
		slog.Warn("native vector search failed, falling back to brute force", "err", err)
	}
	candidates, err := r.db.ListResources(ctx, where)
	if err != nil {
		return nil, err
	}
	scoredItems := make([]scored[*memcore.Resource], 0, len(candidates))
	for _, res := range candidates {
		if len(res.Embedding) == 0 {
			continue
		}
		score, err := cosine(embedding, res.Embedding)
		if err != nil {
			slog.Warn("resource similarity search: skipping candidate", "resource_id", res.ID, "err", err)
			continue
		}
		scoredItems = append(scoredItems, scored[*memcore.Resource]{record: res, score: score})
	}
	scoredItems = topK(scoredItems, k, func(a, b scored[*memcore.Resource]) bool { return a.score > b.score })
	result := make([]memcore.ScoredResource, len(scoredItems))
	for i, s := range scoredItems {
		result[i] = memcore.ScoredResource{Resource: *s.record, Score: s.score}
	}
	return result, nil
}
