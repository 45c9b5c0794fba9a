package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

var itemColumns = map[string]bool{"id": true, "memory_type": true, "resource_id": true}

func (d *DB) CreateMemoryItem(ctx context.Context, item *memcore.MemoryItem) error {
	embJSON, err := json.Marshal(item.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	scopeJSON, err := json.Marshal(item.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO memory_items (id, resource_id, memory_type, summary, embedding, scope, hits, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.ResourceID, string(item.MemoryType), item.Summary, embJSON, scopeJSON, item.Hits, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert memory_item: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE memory_items SET embedding_vec = $2 WHERE id = $1`, item.ID, vectorLiteral(item.Embedding)); err != nil {
			return fmt.Errorf("update memory_item embedding_vec: %w", err)
		}
	}
	return nil
}

func scanItem(row interface{ Scan(...any) error }) (*memcore.MemoryItem, error) {
	var item memcore.MemoryItem
	var memType string
	var resourceID sql.NullString
	var embJSON, scopeJSON []byte
	if err := row.Scan(&item.ID, &resourceID, &memType, &item.Summary, &embJSON, &scopeJSON, &item.Hits, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.MemoryType = memcore.MemoryType(memType)
	if resourceID.Valid {
		item.ResourceID = &resourceID.String
	}
	if err := json.Unmarshal(embJSON, &item.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &item.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	return &item, nil
}

func (d *DB) GetMemoryItem(ctx context.Context, id string) (*memcore.MemoryItem, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, resource_id, memory_type, summary, embedding, scope, hits, created_at, updated_at
		 FROM memory_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory item %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory_item: %w", err)
	}
	return item, nil
}

func (d *DB) ListMemoryItems(ctx context.Context, where ports.Where) ([]*memcore.MemoryItem, error) {
	clause, args := buildWhere(where, itemColumns, 0)
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, resource_id, memory_type, summary, embedding, scope, hits, created_at, updated_at
		 FROM memory_items WHERE `+clause+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list memory_items: %w", err)
	}
	defer rows.Close()

	var out []*memcore.MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory_item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMemoryItem(ctx context.Context, item *memcore.MemoryItem) error {
	embJSON, err := json.Marshal(item.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	scopeJSON, err := json.Marshal(item.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`UPDATE memory_items SET resource_id=$2, memory_type=$3, summary=$4, embedding=$5, scope=$6, hits=$7, updated_at=$8 WHERE id=$1`,
		item.ID, item.ResourceID, string(item.MemoryType), item.Summary, embJSON, scopeJSON, item.Hits, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update memory_item: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE memory_items SET embedding_vec = $2 WHERE id = $1`, item.ID, vectorLiteral(item.Embedding)); err != nil {
			return fmt.Errorf("update memory_item embedding_vec: %w", err)
		}
	}
	return nil
}

func (d *DB) DeleteMemoryItem(ctx context.Context, id string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM memory_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete memory_item: %w", err)
	}
	return nil
}

func (d *DB) SimilaritySearchMemoryItems(ctx context.Context, embedding []float32, k int, where ports.Where) ([]memcore.ScoredItem, error) {
	clause, args := buildWhere(where, itemColumns, 1)
	args = append([]any{vectorLiteral(embedding)}, args...)
	args = append(args, k)
	rows, err := d.Pool.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, resource_id, memory_type, summary, embedding, scope, hits, created_at, updated_at,
		        1 - (embedding_vec <=> $1) AS score
		 FROM memory_items WHERE embedding_vec IS NOT NULL AND %s
		 ORDER BY embedding_vec <=> $1 LIMIT $%d`, clause, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search memory_items: %w", err)
	}
	defer rows.Close()

	var out []memcore.ScoredItem
	for rows.Next() {
		var score float64
		var item memcore.MemoryItem
		var memType string
		var resourceID sql.NullString
		var embJSON, scopeJSON []byte
		if err := rows.Scan(&item.ID, &resourceID, &memType, &item.Summary, &embJSON, &scopeJSON, &item.Hits, &item.CreatedAt, &item.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan memory_item score: %w", err)
		}
		item.MemoryType = memcore.MemoryType(memType)
		if resourceID.Valid {
			item.ResourceID = &resourceID.String
		}
		_ = json.Unmarshal(embJSON, &item.Embedding)
		_ = json.Unmarshal(scopeJSON, &item.Scope)
		out = append(out, memcore.ScoredItem{Item: item, Score: score})
	}
	return out, rows.Err()
}
