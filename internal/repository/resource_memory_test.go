package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

func TestMemoryResourceRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryResourceRepository()

	r := &memcore.Resource{ID: "res_1", URL: "https://x", Modality: memcore.ModalityDocument, Scope: memcore.Scope{"user_id": "alice"}}
	require.NoError(t, repo.Create(ctx, r))
	require.False(t, r.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "res_1", memcore.Scope{"user_id": "alice"})
	require.NoError(t, err)
	require.Equal(t, "https://x", got.URL)

	_, err = repo.GetByID(ctx, "res_1", memcore.Scope{"user_id": "bob"})
	require.Error(t, err, "wrong scope should not resolve the record")

	got.Caption = "a doc"
	require.NoError(t, repo.Update(ctx, got))

	list, err := repo.List(ctx, ports.Where{"user_id": "alice"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a doc", list[0].Caption)

	require.NoError(t, repo.Delete(ctx, "res_1", memcore.Scope{"user_id": "alice"}))
	_, err = repo.GetByID(ctx, "res_1", memcore.Scope{"user_id": "alice"})
	require.Error(t, err)
}

func TestMemoryResourceRepository_SimilaritySearch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryResourceRepository()

	mk := func(id string, emb []float32) *memcore.Resource {
		return &memcore.Resource{ID: id, Modality: memcore.ModalityDocument, Embedding: emb, Scope: memcore.Scope{"user_id": "alice"}}
	}
	require.NoError(t, repo.Create(ctx, mk("res_a", []float32{1, 0})))
	require.NoError(t, repo.Create(ctx, mk("res_b", []float32{0, 1})))
	require.NoError(t, repo.Create(ctx, mk("res_c", []float32{0.9, 0.1})))

	results, err := repo.SimilaritySearch(ctx, []float32{1, 0}, 2, ports.Where{"user_id": "alice"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "res_a", results[0].Resource.ID)
	require.Equal(t, "res_c", results[1].Resource.ID)
}

func TestMemoryResourceRepository_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryResourceRepository()

	require.NoError(t, repo.Create(ctx, &memcore.Resource{ID: "res_1", Embedding: []float32{1, 2, 3}, Scope: memcore.Scope{}}))
	err := repo.Create(ctx, &memcore.Resource{ID: "res_2", Embedding: []float32{1, 2}, Scope: memcore.Scope{}})
	require.Error(t, err)
}

// A query embedding from a differently-configured embed profile can have
// a different dimension than what's stored; SimilaritySearch must skip
// the mismatched candidate rather than panic.
func TestMemoryResourceRepository_SimilaritySearch_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryResourceRepository()

	require.NoError(t, repo.Create(ctx, &memcore.Resource{ID: "res_1", Embedding: []float32{1, 0}, Scope: memcore.Scope{"user_id": "alice"}}))

	require.NotPanics(t, func() {
		results, err := repo.SimilaritySearch(ctx, []float32{1, 0, 0}, 5, ports.Where{"user_id": "alice"})
		require.NoError(t, err)
		require.Empty(t, results)
	})
}
