package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Crawl target: absolute http(s) URL with a host.
	u, err := url.Parse(c.SiteURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSiteURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidSiteURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidSiteURL, c.SiteURL)
	}

	if c.MaxPages < 1 || c.MaxPages > 10000 {
		return fmt.Errorf("%w: must be between 1 and 10000, got %d", ErrInvalidMaxPages, c.MaxPages)
	}

	if c.CrawlDelayMin < 0 || c.CrawlDelayMax < c.CrawlDelayMin {
		return fmt.Errorf("%w: need 0 <= min <= max, got [%d, %d]",
			ErrInvalidCrawlDelay, c.CrawlDelayMin, c.CrawlDelayMax)
	}

	// Chunking invariant: overlap strictly smaller than size.
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	ollamaURL, err := url.Parse(c.OllamaHost)
	if err != nil || ollamaURL.Scheme == "" || ollamaURL.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidOllamaHost, c.OllamaHost)
	}

	if c.SimilarityTopK < 1 || c.SimilarityTopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.SimilarityTopK)
	}

	// Dimension must match the vector column in db/migrations.
	if c.EmbeddingDim < 1 || c.EmbeddingDim > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d", ErrInvalidEmbeddingDim, c.EmbeddingDim)
	}

	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir cannot be empty", ErrInvalidDataDir)
	}

	for _, ext := range c.SupportedExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: %q (extensions must start with a dot)", ErrInvalidExtension, ext)
		}
	}

	// PostgreSQL configuration.
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}
