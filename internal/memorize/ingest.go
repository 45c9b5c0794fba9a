package memorize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corewell/memoryd/internal/blob"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/workflow"
)

// NewIngestResourceStep fetches resource_url via the configured Fetcher,
// persists the bytes under ${resources_dir}/<resource_id>/<basename>
// (write-to-temp-then-rename for crash safety),
// and creates the Resource row.
func NewIngestResourceStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:           "ingest_resource",
		Requires:     []string{KeyResourceURL, KeyModality, KeyScope},
		Produces:     []string{KeyResource, KeyBlob},
		Capabilities: []string{"io"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			resourceURL, _ := state.Get(KeyResourceURL)
			modality, _ := state.Get(KeyModality)
			sc, _ := state.Get(KeyScope)

			url, _ := resourceURL.(string)
			mod, _ := modality.(memcore.Modality)
			recordScope, _ := sc.(memcore.Scope)

			var b *blob.Blob
			retryErr := workflow.Retry(ctx, workflow.DefaultRetryPolicy(), func(ctx context.Context) error {
				fetched, err := deps.Fetcher.Fetch(ctx, url)
				if err != nil {
					return err
				}
				b = fetched
				return nil
			})
			if retryErr != nil {
				if me, ok := retryErr.(*memerr.Error); ok {
					return me
				}
				return memerr.Wrap(memerr.FetchFailed, fmt.Sprintf("fetch %q", url), retryErr)
			}

			now := time.Now()
			resource := &memcore.Resource{
				ID:        memcore.NewID("res"),
				URL:       url,
				Modality:  mod,
				Scope:     recordScope,
				CreatedAt: now,
				UpdatedAt: now,
			}

			localPath, err := writeBlob(deps.ResourceDir, resource.ID, url, b.Data)
			if err != nil {
				return memerr.Wrap(memerr.FetchFailed, "persist fetched blob", err)
			}
			resource.LocalPath = localPath

			if err := deps.Repos.Resources.Create(ctx, resource); err != nil {
				return memerr.Wrap(memerr.FetchFailed, "create resource row", err)
			}

			state.Set(KeyResource, resource)
			state.Set(KeyBlob, b)
			return nil
		},
	}
}

// writeBlob writes data to a temp file in the resource's directory, then
// renames it into place, so concurrent readers never see a partial file.
func writeBlob(resourcesDir, resourceID, sourceURL string, data []byte) (string, error) {
	dir := filepath.Join(resourcesDir, resourceID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create resource dir: %w", err)
	}

	basename := filepath.Base(sourceURL)
	if basename == "" || basename == "." || basename == "/" {
		basename = "blob"
	}
	finalPath := filepath.Join(dir, basename)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename temp blob into place: %w", err)
	}
	return finalPath, nil
}
