// Package db wraps a PostgreSQL connection pool and implements the
// relational and relational+vector metadata_store providers: a thin *DB
// with Pool *sql.DB, a migrationSQL block run by Migrate, and per-entity
// query files next to this one.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
	// VectorNative reports whether the vector_index provider is "native":
	// SimilaritySearch pushes the k-NN query down to the embedding column
	// instead of scoring every row in process.
	VectorNative bool
}

// New opens a connection pool and pings it. vectorNative selects whether
// Migrate adds the pgvector column/extension and whether query methods
// use the native operator.
func New(ctx context.Context, databaseURL string, vectorNative bool) (*DB, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool, VectorNative: vectorNative}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// IsVectorNative reports whether the pgvector columns/indexes are active,
// after accounting for any fallback Migrate performed.
func (d *DB) IsVectorNative() bool {
	return d.VectorNative
}

// Migrate runs the database schema migrations. When VectorNative is set
// it first attempts to enable the pgvector extension and create a native
// vector column/index on each embedding column; a failure there (the
// extension not being installed on this Postgres instance) is logged and
// swallowed, leaving the repositories to fall back to brute-force
// in-process scoring over the plain float array columns.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Pool.ExecContext(ctx, baseMigrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if d.VectorNative {
		if _, err := d.Pool.ExecContext(ctx, vectorMigrationSQL); err != nil {
			slog.Warn("pgvector migration failed, falling back to brute-force similarity search", "err", err)
			d.VectorNative = false
		}
	}
	return nil
}

const baseMigrationSQL = `
CREATE TABLE IF NOT EXISTS resources (
    id         TEXT PRIMARY KEY,
    url        TEXT NOT NULL DEFAULT '',
    modality   TEXT NOT NULL,
    local_path TEXT NOT NULL DEFAULT '',
    caption    TEXT NOT NULL DEFAULT '',
    embedding  JSONB NOT NULL DEFAULT '[]',
    scope      JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_resources_scope ON resources USING GIN (scope);

CREATE TABLE IF NOT EXISTS memory_items (
    id          TEXT PRIMARY KEY,
    resource_id TEXT REFERENCES resources(id) ON DELETE SET NULL,
    memory_type TEXT NOT NULL,
    summary     TEXT NOT NULL DEFAULT '',
    embedding   JSONB NOT NULL DEFAULT '[]',
    scope       JSONB NOT NULL DEFAULT '{}',
    hits        INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_memory_items_scope ON memory_items USING GIN (scope);
CREATE INDEX IF NOT EXISTS idx_memory_items_resource_id ON memory_items(resource_id);

CREATE TABLE IF NOT EXISTS memory_categories (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    summary     TEXT,
    embedding   JSONB NOT NULL DEFAULT '[]',
    scope       JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_memory_categories_scope ON memory_categories USING GIN (scope);

CREATE TABLE IF NOT EXISTS category_items (
    id          TEXT PRIMARY KEY,
    item_id     TEXT NOT NULL REFERENCES memory_items(id) ON DELETE CASCADE,
    category_id TEXT NOT NULL REFERENCES memory_categories(id) ON DELETE CASCADE,
    scope       JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_category_items_item_id ON category_items(item_id);
CREATE INDEX IF NOT EXISTS idx_category_items_category_id ON category_items(category_id);
`

const vectorMigrationSQL = `
CREATE EXTENSION IF NOT EXISTS vector;
ALTER TABLE resources ADD COLUMN IF NOT EXISTS embedding_vec vector(1536);
ALTER TABLE memory_items ADD COLUMN IF NOT EXISTS embedding_vec vector(1536);
ALTER TABLE memory_categories ADD COLUMN IF NOT EXISTS embedding_vec vector(1536);
CREATE INDEX IF NOT EXISTS idx_resources_embedding_vec ON resources USING hnsw (embedding_vec vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_memory_items_embedding_vec ON memory_items USING hnsw (embedding_vec vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_memory_categories_embedding_vec ON memory_categories USING hnsw (embedding_vec vector_cosine_ops);
`
