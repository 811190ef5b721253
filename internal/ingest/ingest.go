// Package ingest turns extracted content into embedded, indexed chunks,
// skipping anything whose content has not changed since the last run.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sitebrain/sitebrain/internal/chunk"
	"github.com/sitebrain/sitebrain/internal/extract"
	"github.com/sitebrain/sitebrain/internal/knowledge"
	"github.com/sitebrain/sitebrain/internal/log"
)

// Embedder produces a vector for one piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer is the slice of the knowledge store the ingestor needs.
type Indexer interface {
	Hash(ctx context.Context, origin string) (string, error)
	Upsert(ctx context.Context, doc knowledge.Document, chunks []knowledge.Chunk) error
}

// Report summarizes a batch ingest.
type Report struct {
	Indexed int
	Skipped int
	Failed  int
}

// Ingestor chunks, embeds and indexes documents.
type Ingestor struct {
	index      Indexer
	embedder   Embedder
	splitter   *chunk.Splitter
	minWords   int
	extensions []string
	logger     log.Logger
}

// Options bundles the tunables for New.
type Options struct {
	MinPageWords int
	ChunkSize    int
	ChunkOverlap int
	Extensions   []string
}

// New creates an Ingestor. Chunk geometry is validated here so a bad
// configuration fails at startup, not mid-crawl.
func New(index Indexer, embedder Embedder, opts Options, logger log.Logger) (*Ingestor, error) {
	splitter, err := chunk.NewSplitter(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Ingestor{
		index:      index,
		embedder:   embedder,
		splitter:   splitter,
		minWords:   opts.MinPageWords,
		extensions: opts.Extensions,
		logger:     logger,
	}, nil
}

// IngestPage indexes one crawled HTML page. Pages below the word floor
// are dropped as boilerplate. Unchanged pages are skipped via fingerprint
// comparison.
func (i *Ingestor) IngestPage(ctx context.Context, pageURL *url.URL, body []byte) error {
	page, err := extract.FromHTML(pageURL, body)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", pageURL, err)
	}

	if extract.WordCount(page.Text) < i.minWords {
		i.logger.Debug("page below word floor",
			"url", pageURL.String(),
			"words", extract.WordCount(page.Text))
		return nil
	}

	text := page.Text
	if page.Title != "" {
		text = page.Title + "\n" + text
	}

	origin := pageURL.String()
	metadata := map[string]string{"source": origin}
	if page.Title != "" {
		metadata["title"] = page.Title
	}
	if err := i.ingest(ctx, origin, "web", text, metadata); err != nil && !IsUnchanged(err) {
		return err
	}
	return nil
}

// IngestFile indexes one local document. The origin is the base filename,
// so re-uploading a file replaces its previous chunks.
func (i *Ingestor) IngestFile(ctx context.Context, path string) error {
	text, err := extract.FromFile(path)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("file %s contains no text", path)
	}

	name := filepath.Base(path)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	metadata := map[string]string{"source": name}
	return i.ingest(ctx, name, fileType, text, metadata)
}

// IngestDirectory walks dir non-recursively and ingests every supported
// file. One bad file does not stop the rest.
func (i *Ingestor) IngestDirectory(ctx context.Context, dir string) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var report Report
	for _, entry := range entries {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if entry.IsDir() || !i.supported(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		err := i.IngestFile(ctx, path)
		switch {
		case err == nil:
			report.Indexed++
		case IsUnchanged(err):
			report.Skipped++
		default:
			i.logger.Warn("file ingest failed", "path", path, "error", err)
			report.Failed++
		}
	}
	return report, nil
}

// errUnchanged marks the dedup skip so callers can tell it from failure.
type errUnchanged struct{ origin string }

func (e errUnchanged) Error() string { return fmt.Sprintf("%s unchanged", e.origin) }

// IsUnchanged reports whether err means the content was already indexed
// with the same fingerprint.
func IsUnchanged(err error) bool {
	_, ok := err.(errUnchanged)
	return ok
}

// ingest is the shared path: fingerprint, dedup, chunk, embed, upsert.
func (i *Ingestor) ingest(ctx context.Context, origin, fileType, text string, metadata map[string]string) error {
	hash := Fingerprint(text)

	stored, err := i.index.Hash(ctx, origin)
	if err != nil {
		return fmt.Errorf("checking fingerprint for %s: %w", origin, err)
	}
	if stored == hash {
		i.logger.Debug("content unchanged", "origin", origin)
		return errUnchanged{origin: origin}
	}

	pieces := i.splitter.Split(text)
	if len(pieces) == 0 {
		return fmt.Errorf("document %s produced no chunks", origin)
	}

	doc := knowledge.Document{
		Origin:      origin,
		ContentHash: hash,
		FileType:    fileType,
		ProcessedAt: time.Now(),
	}

	// Each chunk is self-describing: search results carry the origin,
	// type and processing time without a document-row join.
	chunks := make([]knowledge.Chunk, 0, len(pieces))
	for seq, piece := range pieces {
		embedding, err := i.embedder.Embed(ctx, piece)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %s: %w", seq, origin, err)
		}

		meta := make(map[string]string, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["chunk"] = strconv.Itoa(seq)
		meta["file_type"] = fileType
		meta["processed_at"] = doc.ProcessedAt.UTC().Format(time.RFC3339)

		chunks = append(chunks, knowledge.Chunk{
			Origin:    origin,
			Seq:       seq,
			Content:   piece,
			Embedding: embedding,
			Metadata:  meta,
		})
	}
	if err := i.index.Upsert(ctx, doc, chunks); err != nil {
		return fmt.Errorf("indexing %s: %w", origin, err)
	}

	i.logger.Info("document indexed",
		"origin", origin,
		"chunks", len(chunks))
	return nil
}

func (i *Ingestor) supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range i.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
