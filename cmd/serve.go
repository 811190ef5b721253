package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitebrain/sitebrain/internal/api"
	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/crawler"
	"github.com/sitebrain/sitebrain/internal/database"
	"github.com/sitebrain/sitebrain/internal/ingest"
	"github.com/sitebrain/sitebrain/internal/knowledge"
	"github.com/sitebrain/sitebrain/internal/ollama"
	"github.com/sitebrain/sitebrain/internal/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 3 * time.Minute // generation can be slow on CPU-only hosts
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the knowledge service and its HTTP API. Initialization runs in
the background; the server answers health probes immediately and starts
serving queries once initialization succeeds.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

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

	service := pipeline.New(cfg, models, store, ingestor, logger.With("component", "pipeline"))
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("closing service", "error", err)
		}
	}()

	siteCrawler, err := crawler.New(cfg, logger.With("component", "crawler"),
		func(pageURL *url.URL, body []byte) error {
			// Script-heavy pages carry little in their raw HTML; the
			// rendering engine, when available, supplies the built DOM.
			if service.HasRenderer() {
				rendered, err := service.RenderPage(ctx, pageURL.String())
				if err != nil {
					logger.Warn("page render failed, using raw HTML",
						"url", pageURL.String(), "error", err)
				} else {
					body = rendered
				}
			}
			return ingestor.IngestPage(ctx, pageURL, body)
		})
	if err != nil {
		return fmt.Errorf("creating crawler: %w", err)
	}
	service.SetCrawler(func(ctx context.Context) error {
		stats, err := siteCrawler.Run(ctx)
		logger.Info("site crawl finished",
			"fetched", stats.Fetched,
			"failed", stats.Failed,
			"skipped", stats.Skipped)
		return err
	})

	initDone := service.Start(ctx)

	apiServer, err := api.NewServer(api.ServerConfig{
		Service:       service,
		Logger:        logger.With("component", "api"),
		MaxUploadSize: cfg.MaxUploadSizeBytes(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", serveAddr,
		"api", "/api/v1/*",
		"health", "/health",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	go func() {
		status := <-initDone
		logger.Info("service initialization complete", "status", status)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving HTTP: %w", err)
	}
}
