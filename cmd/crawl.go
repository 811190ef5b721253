package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/crawler"
	"github.com/sitebrain/sitebrain/internal/database"
	"github.com/sitebrain/sitebrain/internal/ingest"
	"github.com/sitebrain/sitebrain/internal/knowledge"
	"github.com/sitebrain/sitebrain/internal/ollama"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the configured site and refresh the index",
	Long: `Crawls the configured site from its seed URLs, extracts page content,
and indexes changed pages. A file lock prevents two crawls from running
against the same data directory at once.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCrawl(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(parent context.Context) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.DataDir, ".crawl.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring crawl lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another crawl is already running")
	}
	defer func() { _ = lock.Unlock() }()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	models, err := ollama.New(cfg, logger.With("component", "ollama"))
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	// The crawl embeds every changed chunk, so the embedder must be up
	// before we start hitting the site.
	if _, haveEmbedder, err := models.Probe(ctx); err != nil {
		return fmt.Errorf("probing model server: %w", err)
	} else if !haveEmbedder {
		return fmt.Errorf("embedding model %q is not pulled", cfg.EmbedderModel)
	}

	store := knowledge.NewStore(knowledge.NewPgxQuerier(pool), logger.With("component", "knowledge"))

	ingestor, err := ingest.New(store, models, ingest.Options{
		MinPageWords: cfg.MinPageWords,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Extensions:   cfg.SupportedExtensions,
	}, logger.With("component", "ingest"))
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	handler := func(pageURL *url.URL, body []byte) error {
		return ingestor.IngestPage(ctx, pageURL, body)
	}
	c, err := crawler.New(cfg, logger.With("component", "crawler"), handler)
	if err != nil {
		return fmt.Errorf("creating crawler: %w", err)
	}

	stats, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}

	fmt.Printf("Crawl complete: %d fetched, %d skipped, %d failed\n",
		stats.Fetched, stats.Skipped, stats.Failed)
	return nil
}
