package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

var categoryColumns = map[string]bool{"id": true, "name": true}

func (d *DB) CreateMemoryCategory(ctx context.Context, c *memcore.MemoryCategory) error {
	embJSON, err := json.Marshal(c.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	scopeJSON, err := json.Marshal(c.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO memory_categories (id, name, description, summary, embedding, scope, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Description, c.Summary, embJSON, scopeJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert memory_category: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE memory_categories SET embedding_vec = $2 WHERE id = $1`, c.ID, vectorLiteral(c.Embedding)); err != nil {
			return fmt.Errorf("update memory_category embedding_vec: %w", err)
		}
	}
	return nil
}

func scanCategory(row interface{ Scan(...any) error }) (*memcore.MemoryCategory, error) {
	var c memcore.MemoryCategory
	var summary sql.NullString
	var embJSON, scopeJSON []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &summary, &embJSON, &scopeJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if summary.Valid {
		c.Summary = &summary.String
	}
	if err := json.Unmarshal(embJSON, &c.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &c.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	return &c, nil
}

func (d *DB) GetMemoryCategory(ctx context.Context, id string) (*memcore.MemoryCategory, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, name, description, summary, embedding, scope, created_at, updated_at
		 FROM memory_categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory category %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory_category: %w", err)
	}
	return c, nil
}

func (d *DB) GetMemoryCategoryByName(ctx context.Context, normalizedName string, scopeValue map[string]string) (*memcore.MemoryCategory, error) {
	scopeJSON, err := json.Marshal(scopeValue)
	if err != nil {
		return nil, fmt.Errorf("marshal scope: %w", err)
	}
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, name, description, summary, embedding, scope, created_at, updated_at
		 FROM memory_categories WHERE lower(name) = $1 AND scope = $2`, normalizedName, scopeJSON)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory category %q not found", normalizedName)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory_category by name: %w", err)
	}
	return c, nil
}

func (d *DB) ListMemoryCategories(ctx context.Context, where ports.Where) ([]*memcore.MemoryCategory, error) {
	clause, args := buildWhere(where, categoryColumns, 0)
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, name, description, summary, embedding, scope, created_at, updated_at
		 FROM memory_categories WHERE `+clause+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list memory_categories: %w", err)
	}
	defer rows.Close()

	var out []*memcore.MemoryCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory_category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMemoryCategory(ctx context.Context, c *memcore.MemoryCategory) error {
	embJSON, err := json.Marshal(c.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	scopeJSON, err := json.Marshal(c.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`UPDATE memory_categories SET name=$2, description=$3, summary=$4, embedding=$5, scope=$6, updated_at=$7 WHERE id=$1`,
		c.ID, c.Name, c.Description, c.Summary, embJSON, scopeJSON, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update memory_category: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE memory_categories SET embedding_vec = $2 WHERE id = $1`, c.ID, vectorLiteral(c.Embedding)); err != nil {
			return fmt.Errorf("update memory_category embedding_vec: %w", err)
		}
	}
	return nil
}

func (d *DB) DeleteMemoryCategory(ctx context.Context, id string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM memory_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete memory_category: %w", err)
	}
	return nil
}

func (d *DB) SimilaritySearchMemoryCategories(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredCategory, error) {
	clause, args := buildWhere(where, categoryColumns, 1)
	args = append([]any{vectorLiteral(embedding)}, args...)
	args = append(args, k)
	rows, err := d.Pool.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name, description, summary, embedding, scope, created_at, updated_at,
		        1 - (embedding_vec <=> $1) AS score
		 FROM memory_categories WHERE embedding_vec IS NOT NULL AND %s
		 ORDER BY embedding_vec <=> $1 LIMIT $%d`, clause, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search memory_categories: %w", err)
	}
	defer rows.Close()

	var out []memcore.ScoredCategory
	for rows.Next() {
		var score float64
		var c memcore.MemoryCategory
		var summary sql.NullString
		var embJSON, scopeJSON []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &summary, &embJSON, &scopeJSON, &c.CreatedAt, &c.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan memory_category score: %w", err)
		}
		if summary.Valid {
			c.Summary = &summary.String
		}
		_ = json.Unmarshal(embJSON, &c.Embedding)
		_ = json.Unmarshal(scopeJSON, &c.Scope)
		out = append(out, memcore.ScoredCategory{Category: c, Score: score})
	}
	return out, rows.Err()
}
