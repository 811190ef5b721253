// Package pipeline orchestrates the knowledge service: staged startup,
// question answering over the indexed content, document management and
// health reporting.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/ingest"
	"github.com/sitebrain/sitebrain/internal/knowledge"
	"github.com/sitebrain/sitebrain/internal/log"
)

// ModelClient is what the service needs from the model server.
type ModelClient interface {
	Probe(ctx context.Context) (haveModel, haveEmbedder bool, err error)
	Ping(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the slice of the knowledge store the service consumes.
type Index interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]knowledge.Result, error)
	Documents(ctx context.Context) ([]knowledge.Document, error)
	Delete(ctx context.Context, origin string) error
	ChunkCount(ctx context.Context) (int64, error)
}

// Loader ingests local files into the index.
type Loader interface {
	IngestFile(ctx context.Context, path string) error
	IngestDirectory(ctx context.Context, dir string) (ingest.Report, error)
}

// Renderer is an optional page-rendering engine for crawl targets that
// need JavaScript execution before their text is extractable. Absence is
// a legitimate state; callers check HasRenderer before relying on it.
type Renderer interface {
	Start(ctx context.Context) error
	Render(ctx context.Context, pageURL string) ([]byte, error)
	Close() error
}

// Service ties the model client, the index and the loader together behind
// the service lifecycle.
type Service struct {
	cfg      *config.Config
	logger   log.Logger
	models   ModelClient
	index    Index
	loader   Loader
	renderer Renderer
	crawl    func(ctx context.Context) error

	status    *statusCell
	closeOnce sync.Once

	mu       sync.Mutex
	warnings []string
}

// New assembles a Service. Initialization does not start until Start or
// Initialize is called.
func New(cfg *config.Config, models ModelClient, index Index, loader Loader, logger log.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
		models: models,
		index:  index,
		loader: loader,
		status: newStatusCell(),
	}
}

// SetRenderer installs an optional rendering engine. Call before Start;
// the engine is launched during initialization.
func (s *Service) SetRenderer(r Renderer) {
	s.renderer = r
}

// SetCrawler installs the site crawl run during initialization. When
// absent the crawl stage is skipped, for deployments that crawl
// out-of-band.
func (s *Service) SetCrawler(run func(ctx context.Context) error) {
	s.crawl = run
}

// HasRenderer reports whether a started rendering engine is available.
func (s *Service) HasRenderer() bool {
	return s.renderer != nil
}

// RenderPage loads a page through the rendering engine so script-built
// content is visible to extraction. Callers check HasRenderer first.
func (s *Service) RenderPage(ctx context.Context, pageURL string) ([]byte, error) {
	if s.renderer == nil {
		return nil, errors.New("no rendering engine installed")
	}
	return s.renderer.Render(ctx, pageURL)
}

// Close releases held capabilities. Safe to call more than once.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.renderer != nil {
			err = s.renderer.Close()
		}
	})
	return err
}

// Status returns the current lifecycle state.
func (s *Service) Status() Status {
	return s.status.get()
}

// Warnings returns the non-fatal problems recorded during startup.
func (s *Service) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

func (s *Service) warn(msg string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, msg)
	s.mu.Unlock()
	s.logger.Warn("startup degraded", "reason", msg)
}
