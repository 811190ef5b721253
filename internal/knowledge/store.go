// Package knowledge stores document fingerprints and embedded chunks in
// PostgreSQL with the pgvector extension, and serves similarity queries
// over them.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitebrain/sitebrain/internal/log"
)

const maxSearchLimit = 20

// Querier abstracts the storage operations the Store needs. The production
// implementation is PgxQuerier; tests substitute a mock.
type Querier interface {
	UpsertDocument(ctx context.Context, doc Document) error
	DocumentHash(ctx context.Context, origin string) (string, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, origin string) error
	ReplaceChunks(ctx context.Context, origin string, chunks []Chunk) error
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]Result, error)
	CountChunks(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// Store validates inputs and adds logging on top of a Querier. It holds no
// state of its own and is safe for concurrent use.
type Store struct {
	querier Querier
	logger  log.Logger
}

// NewStore creates a Store over the given querier.
func NewStore(querier Querier, logger log.Logger) *Store {
	return &Store{querier: querier, logger: logger}
}

// Upsert records a document and replaces its chunks. The document row is
// written after the chunks so a crash between the two leaves the hash stale
// and the next ingest retries.
func (s *Store) Upsert(ctx context.Context, doc Document, chunks []Chunk) error {
	if doc.Origin == "" {
		return errors.New("document origin must not be empty")
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document %q produced no chunks", doc.Origin)
	}

	if err := s.querier.ReplaceChunks(ctx, doc.Origin, chunks); err != nil {
		return err
	}
	if err := s.querier.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	s.logger.Debug("document indexed",
		"origin", doc.Origin,
		"chunks", len(chunks))
	return nil
}

// Hash returns the content hash previously stored for origin, or "" when
// the origin is unknown.
func (s *Store) Hash(ctx context.Context, origin string) (string, error) {
	if origin == "" {
		return "", errors.New("origin must not be empty")
	}
	return s.querier.DocumentHash(ctx, origin)
}

// Documents lists every indexed document.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	return s.querier.ListDocuments(ctx)
}

// Delete removes a document and its chunks from the index.
func (s *Store) Delete(ctx context.Context, origin string) error {
	if origin == "" {
		return errors.New("origin must not be empty")
	}
	if err := s.querier.DeleteDocument(ctx, origin); err != nil {
		return err
	}
	s.logger.Debug("document removed", "origin", origin)
	return nil
}

// Search returns the chunks most similar to the query embedding. The limit
// is clamped to a sane range so a bad caller cannot dump the table.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]Result, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding must not be empty")
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.querier.SearchChunks(ctx, embedding, limit)
}

// ChunkCount returns the total number of indexed chunks.
func (s *Store) ChunkCount(ctx context.Context) (int64, error) {
	return s.querier.CountChunks(ctx)
}

// Clear wipes the entire knowledge base.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.querier.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("knowledge base cleared")
	return nil
}
