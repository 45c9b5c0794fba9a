package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

var resourceColumns = map[string]bool{"id": true, "modality": true}

func (d *DB) CreateResource(ctx context.Context, r *memcore.Resource) error {
	embJSON, err := json.Marshal(r.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	scopeJSON, err := json.Marshal(r.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO resources (id, url, modality, local_path, caption, embedding, scope, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.URL, string(r.Modality), r.LocalPath, r.Caption, embJSON, scopeJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE resources SET embedding_vec = $2 WHERE id = $1`, r.ID, vectorLiteral(r.Embedding)); err != nil {
			return fmt.Errorf("update resource embedding_vec: %w", err)
		}
	}
	return nil
}

func scanResource(row interface{ Scan(...any) error }) (*memcore.Resource, error) {
	var r memcore.Resource
	var modality string
	var embJSON, scopeJSON []byte
	if err := row.Scan(&r.ID, &r.URL, &modality, &r.LocalPath, &r.Caption, &embJSON, &scopeJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Modality = memcore.Modality(modality)
	if err := json.Unmarshal(embJSON, &r.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &r.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	return &r, nil
}

func (d *DB) GetResource(ctx context.Context, id string) (*memcore.Resource, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, url, modality, local_path, caption, embedding, scope, created_at, updated_at
		 FROM resources WHERE id = $1`, id)
	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resource %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

func (d *DB) ListResources(ctx context.Context, where ports.Where) ([]*memcore.Resource, error) {
	clause, args := buildWhere(where, resourceColumns, 0)
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, url, modality, local_path, caption, embedding, scope, created_at, updated_at
		 FROM resources WHERE `+clause+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []*memcore.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) UpdateResource(ctx context.Context, r *memcore.Resource) error {
	embJSON, err := json.Marshal(r.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	scopeJSON, err := json.Marshal(r.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`UPDATE resources SET url=$2, local_path=$3, caption=$4, embedding=$5, scope=$6, updated_at=$7 WHERE id=$1`,
		r.ID, r.URL, r.LocalPath, r.Caption, embJSON, scopeJSON, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE resources SET embedding_vec = $2 WHERE id = $1`, r.ID, vectorLiteral(r.Embedding)); err != nil {
			return fmt.Errorf("update resource embedding_vec: %w", err)
		}
	}
	return nil
}

func (d *DB) DeleteResource(ctx context.Context, id string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

// SimilaritySearchResources runs a native pgvector k-NN query; only valid
// when d.VectorNative is true.
func (d *DB) SimilaritySearchResources(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredResource, error) {
	clause, args := buildWhere(where, resourceColumns, 1)
	args = append([]any{vectorLiteral(embedding)}, args...)
	args = append(args, k)
	rows, err := d.Pool.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, url, modality, local_path, caption, embedding, scope, created_at, updated_at,
		        1 - (embedding_vec <=> $1) AS score
		 FROM resources WHERE embedding_vec IS NOT NULL AND %s
		 ORDER BY embedding_vec <=> $1 LIMIT $%d`, clause, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search resources: %w", err)
	}
	defer rows.Close()

	var out []memcore.ScoredResource
	for rows.Next() {
		var score float64
		var r memcore.Resource
		var modality string
		var embJSON, scopeJSON []byte
		if err := rows.Scan(&r.ID, &r.URL, &modality, &r.LocalPath, &r.Caption, &embJSON, &scopeJSON, &r.CreatedAt, &r.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan resource score: %w", err)
		}
		r.Modality = memcore.Modality(modality)
		_ = json.Unmarshal(embJSON, &r.Embedding)
		_ = json.Unmarshal(scopeJSON, &r.Scope)
		out = append(out, memcore.ScoredResource{Resource: r, Score: score})
	}
	return out, rows.Err()
}
