package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgxQuerier implements Querier over a pgx connection pool.
// SQL lives here; Store stays free of driver concerns.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier creates a Querier backed by the given pool.
// The pool must have pgvector types registered (see internal/database).
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

// UpsertDocument inserts or updates the registry row for a document.
func (q *PgxQuerier) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO documents (origin, content_hash, file_type, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (origin) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			file_type    = EXCLUDED.file_type,
			processed_at = EXCLUDED.processed_at`,
		doc.Origin, doc.ContentHash, doc.FileType, doc.ProcessedAt)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.Origin, err)
	}
	return nil
}

// DocumentHash returns the stored content hash for an origin, or "" when the
// origin has never been ingested.
func (q *PgxQuerier) DocumentHash(ctx context.Context, origin string) (string, error) {
	var hash string
	err := q.pool.QueryRow(ctx,
		`SELECT content_hash FROM documents WHERE origin = $1`, origin).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading document hash for %q: %w", origin, err)
	}
	return hash, nil
}

// ListDocuments returns all registry rows, newest first.
func (q *PgxQuerier) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT origin, content_hash, file_type, processed_at
		FROM documents
		ORDER BY processed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Origin, &d.ContentHash, &d.FileType, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a registry row and all of its chunks in one
// transaction, so readers never see a document without its chunks gone too.
func (q *PgxQuerier) DeleteDocument(ctx context.Context, origin string) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE origin = $1`, origin); err != nil {
		return fmt.Errorf("deleting chunks for %q: %w", origin, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE origin = $1`, origin); err != nil {
		return fmt.Errorf("deleting document %q: %w", origin, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete for %q: %w", origin, err)
	}
	return nil
}

// ReplaceChunks atomically replaces all chunks of one origin with the given
// batch. Readers observe either the old set or the complete new set.
func (q *PgxQuerier) ReplaceChunks(ctx context.Context, origin string, chunks []Chunk) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE origin = $1`, origin); err != nil {
		return fmt.Errorf("clearing previous chunks for %q: %w", origin, err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling chunk metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO chunks (origin, seq, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			origin, c.Seq, c.Content, pgvector.NewVector(c.Embedding), metadata)
	}

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("inserting %d chunks for %q: %w", len(chunks), origin, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks for %q: %w", origin, err)
	}
	return nil
}

// SearchChunks returns up to limit chunks ordered by descending cosine
// similarity to the query embedding; equal scores fall back to insertion
// order.
func (q *PgxQuerier) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]Result, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT content, origin, metadata, 1 - (embedding <=> $1) AS similarity
		FROM chunks
		ORDER BY embedding <=> $1, id
		LIMIT $2`,
		pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metadata []byte
		if err := rows.Scan(&r.Content, &r.Origin, &metadata, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				r.Metadata = map[string]string{}
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return results, nil
}

// CountChunks returns the total number of indexed chunks.
func (q *PgxQuerier) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Clear removes every chunk and registry row.
func (q *PgxQuerier) Clear(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, `TRUNCATE chunks, documents RESTART IDENTITY`); err != nil {
		return fmt.Errorf("clearing knowledge base: %w", err)
	}
	return nil
}
