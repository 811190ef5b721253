package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Start runs initialization in the background and returns a channel that
// receives the terminal status exactly once.
func (s *Service) Start(ctx context.Context) <-chan Status {
	done := make(chan Status, 1)
	go func() {
		done <- s.Initialize(ctx)
	}()
	return done
}

// Initialize runs the startup stages in order and records the terminal
// status. Model connectivity, model presence, the generation smoke test
// and index reachability are fatal; renderer launch, the site crawl and
// content loading degrade the service instead of killing it.
//
// Initialize runs at most once. Later calls return the recorded status
// without re-running the stages.
func (s *Service) Initialize(ctx context.Context) (result Status) {
	if !s.status.transition(StatusNotInitialized, StatusInitializing) {
		return s.status.get()
	}
	s.logger.Info("initializing knowledge service")

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("initialization panicked", "panic", r)
			result = StatusFailedGeneral.withDetail(fmt.Sprint(r))
		}
		s.status.set(result)
		s.logger.Info("initialization finished", "status", result)
	}()

	if err := s.models.Ping(ctx); err != nil {
		s.logger.Error("model server unreachable", "error", err)
		return StatusFailedOllama.withDetail(err.Error())
	}

	haveModel, haveEmbedder, err := s.models.Probe(ctx)
	if err != nil {
		s.logger.Error("model probe failed", "error", err)
		return StatusFailedOllama.withDetail(err.Error())
	}
	if !haveModel {
		s.logger.Error("chat model not pulled", "model", s.cfg.ModelName)
		return StatusFailedOllama.withDetail(fmt.Sprintf("model %q is not pulled", s.cfg.ModelName))
	}
	if !haveEmbedder {
		s.logger.Error("embedding model not pulled", "model", s.cfg.EmbedderModel)
		return StatusFailedOllama.withDetail(fmt.Sprintf("embedder %q is not pulled", s.cfg.EmbedderModel))
	}

	// Smoke test: a model listed in the catalog can still fail to load.
	reply, err := s.models.Generate(ctx, "ping")
	if err != nil {
		s.logger.Error("generation smoke test failed", "error", err)
		return StatusFailedLLM.withDetail(err.Error())
	}
	if strings.TrimSpace(reply) == "" {
		s.logger.Error("generation smoke test returned an empty reply")
		return StatusFailedLLM.withDetail("empty reply to the smoke test")
	}

	count, err := s.index.ChunkCount(ctx)
	if err != nil {
		s.logger.Error("knowledge index unreachable", "error", err)
		return StatusFailedIndex.withDetail(err.Error())
	}
	if count == 0 {
		s.logger.Warn("knowledge index is empty")
	}

	s.startRenderer(ctx)
	s.crawlSite(ctx)
	s.loadContent(ctx)

	return StatusSuccess
}

// loadContent ingests the local data directory. Failures here degrade the
// service instead of killing it so previously indexed content stays
// queryable.
func (s *Service) loadContent(ctx context.Context) {
	dir := s.cfg.DataDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		s.logger.Debug("data directory absent, nothing to load", "dir", dir)
		return
	}

	report, err := s.loader.IngestDirectory(ctx, dir)
	if err != nil {
		s.warn(fmt.Sprintf("loading data directory: %v", err))
		return
	}
	if report.Failed > 0 {
		s.warn(fmt.Sprintf("%d file(s) failed to ingest", report.Failed))
	}
	s.logger.Info("data directory loaded",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed)
}

// startRenderer launches the optional rendering engine. Failure disables
// the capability and the crawl proceeds on raw HTML.
func (s *Service) startRenderer(ctx context.Context) {
	if !s.cfg.RendererEnabled {
		return
	}
	if s.renderer == nil {
		s.warn("renderer enabled in config but not installed, crawling raw HTML")
		return
	}
	if err := s.renderer.Start(ctx); err != nil {
		s.warn(fmt.Sprintf("starting renderer: %v", err))
		s.renderer = nil
	}
}

// crawlSite refreshes the index from the configured site. Crawl problems
// leave the service running on whatever is already indexed.
func (s *Service) crawlSite(ctx context.Context) {
	if s.crawl == nil {
		s.logger.Debug("no crawl runner installed, skipping site crawl")
		return
	}
	if err := s.crawl(ctx); err != nil {
		s.warn(fmt.Sprintf("site crawl: %v", err))
	}
}
