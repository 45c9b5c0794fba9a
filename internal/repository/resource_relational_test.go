package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

// fakeResourceDB is a minimal in-process stand-in for *db.DB, used to
// exercise the cache-first read and list-fallback paths without a real
// Postgres connection.
type fakeResourceDB struct {
	records      map[string]*memcore.Resource
	listErr      error
	vectorNative bool
}

func newFakeResourceDB() *fakeResourceDB {
	return &fakeResourceDB{records: map[string]*memcore.Resource{}}
}

func (f *fakeResourceDB) CreateResource(_ context.Context, r *memcore.Resource) error {
	f.records[r.ID] = r
	return nil
}

func (f *fakeResourceDB) GetResource(_ context.Context, id string) (*memcore.Resource, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (f *fakeResourceDB) ListResources(_ context.Context, _ ports.Where) ([]*memcore.Resource, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*memcore.Resource
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeResourceDB) UpdateResource(_ context.Context, r *memcore.Resource) error {
	f.records[r.ID] = r
	return nil
}

func (f *fakeResourceDB) DeleteResource(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeResourceDB) SimilaritySearchResources(_ context.Context, _ []float32, _ int, _ ports.Where) ([]memcore.ScoredResource, error) {
	return nil, errors.New("native vector search unavailable in test double")
}

func (f *fakeResourceDB) IsVectorNative() bool { return f.vectorNative }

func TestRelationalResourceRepository_CacheFirstRead(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryResourceRepository()
	fdb := newFakeResourceDB()
	repo := NewRelationalResourceRepository(mem, fdb)

	r := &memcore.Resource{ID: "res_1", URL: "https://x", Modality: memcore.ModalityDocument, Scope: memcore.Scope{}}
	require.NoError(t, repo.Create(ctx, r))

	// Present in both cache and DB.
	got, err := repo.GetByID(ctx, "res_1", memcore.Scope{})
	require.NoError(t, err)
	require.Equal(t, "https://x", got.URL)

	// Evict from the cache only; GetByID should fall through to the DB and backfill.
	require.NoError(t, mem.Delete(ctx, "res_1", memcore.Scope{}))
	got, err = repo.GetByID(ctx, "res_1", memcore.Scope{})
	require.NoError(t, err)
	require.Equal(t, "res_1", got.ID)

	_, err = mem.GetByID(ctx, "res_1", memcore.Scope{})
	require.NoError(t, err, "GetByID should have backfilled the cache from the DB")
}

func TestRelationalResourceRepository_ListFallsBackToCacheOnDBError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryResourceRepository()
	fdb := newFakeResourceDB()
	fdb.listErr = errors.New("connection reset")
	repo := NewRelationalResourceRepository(mem, fdb)

	r := &memcore.Resource{ID: "res_1", Scope: memcore.Scope{}}
	require.NoError(t, repo.Create(ctx, r))

	list, err := repo.List(ctx, ports.Where{})
	require.NoError(t, err, "List should fall back to the cache instead of propagating the DB error")
	require.Len(t, list, 1)
}

func TestRelationalResourceRepository_SimilaritySearchFallsBackToBruteForce(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryResourceRepository()
	fdb := newFakeResourceDB()
	fdb.vectorNative = true
	repo := NewRelationalResourceRepository(mem, fdb)

	require.NoError(t, repo.Create(ctx, &memcore.Resource{ID: "res_1", Embedding: []float32{1, 0}, Scope: memcore.Scope{}}))
	require.NoError(t, repo.Create(ctx, &memcore.Resource{ID: "res_2", Embedding: []float32{0, 1}, Scope: memcore.Scope{}}))

	results, err := repo.SimilaritySearch(ctx, []float32{1, 0}, 1, ports.Where{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "res_1", results[0].Resource.ID)
}
