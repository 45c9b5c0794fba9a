package memorize

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/corewell/memoryd/internal/llm"
)

// embedBatched calls client.Embed in chunks of batchSize, one goroutine
// per chunk via errgroup, honoring the configured embed_batch_size as
// backpressure on a single call's fan-out rather than a hard cap on
// total concurrency. Results preserve input order regardless of which
// batch finishes first.
func embedBatched(ctx context.Context, client llm.Client, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 16
	}

	type chunk struct {
		start, end int
	}
	var chunks []chunk
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunks = append(chunks, chunk{start, end})
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range chunks {
		ch := ch
		g.Go(func() error {
			vecs, err := client.Embed(gctx, texts[ch.start:ch.end])
			if err != nil {
				return err
			}
			copy(out[ch.start:ch.end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
