package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
)

var categoryItemColumns = map[string]bool{"id": true, "item_id": true, "category_id": true}

func (d *DB) CreateCategoryItem(ctx context.Context, e *memcore.CategoryItem) error {
	scopeJSON, err := json.Marshal(e.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO category_items (id, item_id, category_id, scope, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ItemID, e.CategoryID, scopeJSON, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert category_item: %w", err)
	}
	return nil
}

func scanCategoryItem(row interface{ Scan(...any) error }) (*memcore.CategoryItem, error) {
	var e memcore.CategoryItem
	var scopeJSON []byte
	if err := row.Scan(&e.ID, &e.ItemID, &e.CategoryID, &scopeJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopeJSON, &e.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	return &e, nil
}

func (d *DB) GetCategoryItem(ctx context.Context, id string) (*memcore.CategoryItem, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, item_id, category_id, scope, created_at, updated_at FROM category_items WHERE id = $1`, id)
	e, err := scanCategoryItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category item %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get category_item: %w", err)
	}
	return e, nil
}

func (d *DB) ListCategoryItems(ctx context.Context, where ports.Where) ([]*memcore.CategoryItem, error) {
	clause, args := buildWhere(where, categoryItemColumns, 0)
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, item_id, category_id, scope, created_at, updated_at FROM category_items WHERE `+clause+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list category_items: %w", err)
	}
	defer rows.Close()

	var out []*memcore.CategoryItem
	for rows.Next() {
		e, err := scanCategoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category_item: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) UpdateCategoryItem(ctx context.Context, e *memcore.CategoryItem) error {
	scopeJSON, err := json.Marshal(e.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`UPDATE category_items SET item_id=$2, category_id=$3, scope=$4, updated_at=$5 WHERE id=$1`,
		e.ID, e.ItemID, e.CategoryID, scopeJSON, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update category_item: %w", err)
	}
	return nil
}

func (d *DB) DeleteCategoryItem(ctx context.Context, id string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM category_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category_item: %w", err)
	}
	return nil
}

func (d *DB) DeleteCategoryItemsByItemID(ctx context.Context, itemID string) error {
	_, err := d.Pool.ExecContext(ctx, `DELETE FROM category_items WHERE item_id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete category_items by item_id: %w", err)
	}
	return nil
}
