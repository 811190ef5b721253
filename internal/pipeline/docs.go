package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sitebrain/sitebrain/internal/ingest"
	"github.com/sitebrain/sitebrain/internal/knowledge"
	"github.com/sitebrain/sitebrain/internal/security"
)

// DocumentInfo is the API-facing view of one indexed document.
type DocumentInfo struct {
	Name        string    `json:"name"`
	FileType    string    `json:"file_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Stats summarizes the knowledge base contents.
type Stats struct {
	Documents int    `json:"documents"`
	Chunks    int64  `json:"chunks"`
	Status    Status `json:"status"`
}

// SaveUpload stores an uploaded file in the data directory and indexes
// it. The extension must be in the supported list; filenames are reduced
// to their base to keep uploads inside the data directory.
func (s *Service) SaveUpload(ctx context.Context, filename string, r io.Reader) error {
	if !s.Status().Ready() {
		return fmt.Errorf("%w: status %s", ErrNotInitialized, s.Status())
	}

	if err := os.MkdirAll(s.cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	guard, err := security.NewPathGuard(s.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	path, err := guard.Join(filename)
	if err != nil {
		return fmt.Errorf("invalid filename %q: %w", filename, err)
	}
	name := filepath.Base(path)
	if !s.extensionSupported(name) {
		return fmt.Errorf("unsupported file type %q, allowed: %s",
			filepath.Ext(name), strings.Join(s.cfg.SupportedExtensions, ", "))
	}

	f, err := os.Create(path) // #nosec G304 -- path is confined by PathGuard above
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}

	limit := s.cfg.MaxUploadSizeBytes()
	written, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("writing upload: %w", err)
	}
	if written > limit {
		_ = os.Remove(path)
		return fmt.Errorf("upload exceeds the %d MB limit", s.cfg.MaxUploadSizeMB)
	}

	if err := s.loader.IngestFile(ctx, path); err != nil && !ingest.IsUnchanged(err) {
		// Keep the file so a later reload can retry it.
		return fmt.Errorf("%w: %v", ErrIngestion, err)
	}
	s.logger.Info("upload indexed", "name", name, "bytes", written)
	return nil
}

// ListDocuments returns every indexed document.
func (s *Service) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	docs, err := s.index.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	out := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = DocumentInfo{
			Name:        d.Origin,
			FileType:    d.FileType,
			ProcessedAt: d.ProcessedAt,
		}
	}
	return out, nil
}

// DeleteDocument removes a document from the index and, for uploads, the
// backing file from the data directory. Deletion cascades to the chunks
// so stale context cannot surface in later answers.
func (s *Service) DeleteDocument(ctx context.Context, name string) error {
	docs, err := s.index.Documents(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var found *knowledge.Document
	for i := range docs {
		if docs[i].Origin == name {
			found = &docs[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := s.index.Delete(ctx, name); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if found.FileType != "web" {
		path := filepath.Join(s.cfg.DataDir, filepath.Base(name))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("backing file not removed", "path", path, "error", err)
		}
	}

	s.logger.Info("document deleted", "name", name)
	return nil
}

// GetStats reports document and chunk counts alongside the lifecycle
// status.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	docs, err := s.index.Documents(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	chunks, err := s.index.ChunkCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return Stats{
		Documents: len(docs),
		Chunks:    chunks,
		Status:    s.Status(),
	}, nil
}

func (s *Service) extensionSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.cfg.SupportedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
