package repository

import (
	"math"
	"sort"

	"github.com/corewell/memoryd/internal/memerr"
)

// cosine computes cosine similarity between two equal-length vectors.
// Mixed dimensionality can reach SimilaritySearch even though writes
// enforce a fixed dimension within one repository: the query embedding
// comes from a separately-configurable profile (llm_ranking_llm_profile
// vs. memory_extract_llm_profile) and can legitimately differ in
// dimension from what's stored. That's caller-triggerable on valid
// config, not a caller bug, so it's reported as InvalidInput rather than
// panicking.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, memerr.Newf(memerr.InvalidInput,
			"cosine similarity: embedding dimensions do not match (%d vs %d)", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// checkDimension rejects mixed embedding dimensions: all embeddings for
// one role within a repository share one length. dim == 0 means "no prior
// embedding recorded yet", so any dimension is accepted.
func checkDimension(dim int, embedding []float32) error {
	if dim != 0 && len(embedding) != dim {
		return memerr.Newf(memerr.InvalidInput,
			"embedding dimension %d does not match existing dimension %d for this repository", len(embedding), dim)
	}
	return nil
}

// scored pairs an arbitrary record with a similarity score, used to share
// top-k selection logic across the three repository types.
type scored[T any] struct {
	record T
	score  float64
}

// topK sorts by score descending (ties by a caller-supplied tiebreak,
// e.g. updated_at desc) and truncates to k.
func topK[T any](items []scored[T], k int, less func(a, b scored[T]) bool) []scored[T] {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	if k > 0 && len(items) > k {
		items = items[:k]
	}
	return items
}
