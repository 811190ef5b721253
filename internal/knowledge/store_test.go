package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitebrain/sitebrain/internal/log"
)

// mockQuerier records calls and returns configurable results.
type mockQuerier struct {
	upsertErr  error
	deleteErr  error
	replaceErr error
	searchErr  error

	hash     string
	hashErr  error
	docs     []Document
	results  []Result
	count    int64
	clearErr error

	upsertedDoc    *Document
	replacedOrigin string
	replacedChunks []Chunk
	deletedOrigin  string
	searchLimit    int
	cleared        bool
}

func (m *mockQuerier) UpsertDocument(_ context.Context, doc Document) error {
	m.upsertedDoc = &doc
	return m.upsertErr
}

func (m *mockQuerier) DocumentHash(_ context.Context, _ string) (string, error) {
	return m.hash, m.hashErr
}

func (m *mockQuerier) ListDocuments(_ context.Context) ([]Document, error) {
	return m.docs, nil
}

func (m *mockQuerier) DeleteDocument(_ context.Context, origin string) error {
	m.deletedOrigin = origin
	return m.deleteErr
}

func (m *mockQuerier) ReplaceChunks(_ context.Context, origin string, chunks []Chunk) error {
	m.replacedOrigin = origin
	m.replacedChunks = chunks
	return m.replaceErr
}

func (m *mockQuerier) SearchChunks(_ context.Context, _ []float32, limit int) ([]Result, error) {
	m.searchLimit = limit
	return m.results, m.searchErr
}

func (m *mockQuerier) CountChunks(_ context.Context) (int64, error) {
	return m.count, nil
}

func (m *mockQuerier) Clear(_ context.Context) error {
	m.cleared = true
	return m.clearErr
}

func testDocument() Document {
	return Document{
		Origin:      "https://example.com/faqs",
		ContentHash: "abc123",
		FileType:    "web",
		ProcessedAt: time.Now(),
	}
}

func testChunks() []Chunk {
	return []Chunk{
		{Origin: "https://example.com/faqs", Seq: 0, Content: "first", Embedding: []float32{0.1, 0.2}},
		{Origin: "https://example.com/faqs", Seq: 1, Content: "second", Embedding: []float32{0.3, 0.4}},
	}
}

func TestStoreUpsert(t *testing.T) {
	t.Run("writes chunks before the document row", func(t *testing.T) {
		mock := &mockQuerier{}
		store := NewStore(mock, log.NewNop())

		if err := store.Upsert(context.Background(), testDocument(), testChunks()); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if mock.replacedOrigin != "https://example.com/faqs" {
			t.Errorf("replaced origin = %q", mock.replacedOrigin)
		}
		if len(mock.replacedChunks) != 2 {
			t.Errorf("replaced %d chunks, want 2", len(mock.replacedChunks))
		}
		if mock.upsertedDoc == nil || mock.upsertedDoc.ContentHash != "abc123" {
			t.Errorf("document row not written: %+v", mock.upsertedDoc)
		}
	})

	t.Run("rejects empty origin", func(t *testing.T) {
		store := NewStore(&mockQuerier{}, log.NewNop())
		doc := testDocument()
		doc.Origin = ""
		if err := store.Upsert(context.Background(), doc, testChunks()); err == nil {
			t.Error("Upsert() with empty origin should fail")
		}
	})

	t.Run("rejects empty chunk set", func(t *testing.T) {
		store := NewStore(&mockQuerier{}, log.NewNop())
		if err := store.Upsert(context.Background(), testDocument(), nil); err == nil {
			t.Error("Upsert() with no chunks should fail")
		}
	})

	t.Run("skips the document row when chunks fail", func(t *testing.T) {
		mock := &mockQuerier{replaceErr: errors.New("disk full")}
		store := NewStore(mock, log.NewNop())

		if err := store.Upsert(context.Background(), testDocument(), testChunks()); err == nil {
			t.Fatal("Upsert() should propagate chunk error")
		}
		if mock.upsertedDoc != nil {
			t.Error("document row written despite chunk failure")
		}
	})
}

func TestStoreSearch(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "normal limit passes through", limit: 3, wantLimit: 3},
		{name: "zero limit raised to one", limit: 0, wantLimit: 1},
		{name: "negative limit raised to one", limit: -5, wantLimit: 1},
		{name: "oversized limit clamped", limit: 500, wantLimit: maxSearchLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockQuerier{results: []Result{{Content: "hit"}}}
			store := NewStore(mock, log.NewNop())

			results, err := store.Search(context.Background(), []float32{0.5}, tt.limit)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if mock.searchLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", mock.searchLimit, tt.wantLimit)
			}
			if len(results) != 1 {
				t.Errorf("got %d results, want 1", len(results))
			}
		})
	}

	t.Run("rejects empty embedding", func(t *testing.T) {
		store := NewStore(&mockQuerier{}, log.NewNop())
		if _, err := store.Search(context.Background(), nil, 3); err == nil {
			t.Error("Search() with empty embedding should fail")
		}
	})
}

func TestStoreDelete(t *testing.T) {
	mock := &mockQuerier{}
	store := NewStore(mock, log.NewNop())

	if err := store.Delete(context.Background(), "upload:guide.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mock.deletedOrigin != "upload:guide.pdf" {
		t.Errorf("deleted origin = %q", mock.deletedOrigin)
	}

	if err := store.Delete(context.Background(), ""); err == nil {
		t.Error("Delete() with empty origin should fail")
	}
}

func TestStoreHash(t *testing.T) {
	mock := &mockQuerier{hash: "deadbeef"}
	store := NewStore(mock, log.NewNop())

	hash, err := store.Hash(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash != "deadbeef" {
		t.Errorf("hash = %q, want %q", hash, "deadbeef")
	}

	if _, err := store.Hash(context.Background(), ""); err == nil {
		t.Error("Hash() with empty origin should fail")
	}
}

func TestStoreClear(t *testing.T) {
	mock := &mockQuerier{}
	store := NewStore(mock, log.NewNop())

	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if !mock.cleared {
		t.Error("Clear() did not reach the querier")
	}
}
