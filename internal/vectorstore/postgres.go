package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PostgresQuerier implements Querier on a pgx connection pool.
// The pool must be created with NewPool so the vector type is registered.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier wraps a pool.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

// NewPool creates a pgx pool with pgvector type support registered on every
// connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing pool config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// InsertEmbedding stores one chunk row, replacing any existing row with the
// same ID.
func (q *PostgresQuerier) InsertEmbedding(ctx context.Context, row Row) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO vector_embeddings (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at`,
		row.ID, row.Content, pgvector.NewVector(row.Embedding), row.Metadata, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// ListEmbeddings loads rows, optionally filtered by source type.
func (q *PostgresQuerier) ListEmbeddings(ctx context.Context, sourceType string) ([]Row, error) {
	query := `SELECT id, content, embedding, metadata, created_at FROM vector_embeddings`
	args := []any{}
	if sourceType != "" {
		query += ` WHERE metadata->>'source_type' = $1`
		args = append(args, sourceType)
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var vec pgvector.Vector
		if err := rows.Scan(&r.ID, &r.Content, &vec, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		r.Embedding = vec.Slice()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	return out, nil
}

// DeleteBySource removes all chunks of one origin record.
func (q *PostgresQuerier) DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM vector_embeddings
		WHERE metadata->>'source_type' = $1 AND metadata->>'source_id' = $2`,
		sourceType, sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBySourceType removes all chunks of one source type.
func (q *PostgresQuerier) DeleteBySourceType(ctx context.Context, sourceType string) (int64, error) {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM vector_embeddings WHERE metadata->>'source_type' = $1`, sourceType)
	if err != nil {
		return 0, fmt.Errorf("delete by source type: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAll empties the table.
func (q *PostgresQuerier) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM vector_embeddings`)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountBySourceType returns per-source-type row counts. Rows without a
// source_type key are grouped under "unknown".
func (q *PostgresQuerier) CountBySourceType(ctx context.Context) (map[string]int64, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT COALESCE(metadata->>'source_type', 'unknown'), COUNT(*)
		FROM vector_embeddings
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("count by source type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sourceType string
		var n int64
		if err := rows.Scan(&sourceType, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[sourceType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by source type: %w", err)
	}
	return counts, nil
}
