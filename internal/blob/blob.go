// Package blob resolves a memorize request's source (a local file path
// or a remote URL) down to raw bytes plus a content type used to pick
// an extractor.
package blob

import (
	"context"
)

// Blob is a fetched resource body plus the content type used to pick an
// extractor.
type Blob struct {
	ContentType string
	Data        []byte
}

// Fetcher resolves a source reference (local path or URL) to a Blob.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (*Blob, error)
}
