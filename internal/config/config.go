// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sitebrain/config.yaml, or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Crawl: site URL, seed paths, page cap, politeness window
//   - Ingest: chunk size/overlap, supported file extensions, upload directory
//   - Ollama: host, generation model, embedding model
//   - Storage: PostgreSQL connection (see storage.go)
//
// Validation runs fail-fast at load time; range checks live in validation.go
// and return sentinel errors usable with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidSiteURL indicates the crawl target URL is invalid.
	ErrInvalidSiteURL = errors.New("invalid site URL")

	// ErrInvalidMaxPages indicates the crawl page cap is out of range.
	ErrInvalidMaxPages = errors.New("invalid max pages")

	// ErrInvalidCrawlDelay indicates the politeness window is malformed.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay window")

	// ErrInvalidChunking indicates chunk size/overlap violate the
	// overlap < size invariant.
	ErrInvalidChunking = errors.New("invalid chunk configuration")

	// ErrInvalidModelName indicates the generation model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedding model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host URL is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidTopK indicates the similarity search result cap is out of range.
	ErrInvalidTopK = errors.New("invalid similarity top-k")

	// ErrInvalidEmbeddingDim indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidDataDir indicates the upload/data directory is invalid.
	ErrInvalidDataDir = errors.New("invalid data directory")

	// ErrInvalidExtension indicates a supported-extension entry is malformed.
	ErrInvalidExtension = errors.New("invalid supported extension")
)

// Config stores application configuration.
type Config struct {
	// Crawl target
	SiteURL       string   `mapstructure:"site_url" json:"site_url"`
	SeedPaths     []string `mapstructure:"seed_paths" json:"seed_paths"`
	MaxPages      int      `mapstructure:"max_pages" json:"max_pages"`
	CrawlDelayMin int      `mapstructure:"crawl_delay_min_ms" json:"crawl_delay_min_ms"`
	CrawlDelayMax int      `mapstructure:"crawl_delay_max_ms" json:"crawl_delay_max_ms"`
	FetchTimeout  int      `mapstructure:"fetch_timeout_ms" json:"fetch_timeout_ms"`
	MinPageWords  int      `mapstructure:"min_page_words" json:"min_page_words"`
	UserAgents    []string `mapstructure:"user_agents" json:"user_agents"`

	// Ingestion
	DataDir             string   `mapstructure:"data_dir" json:"data_dir"`
	SupportedExtensions []string `mapstructure:"supported_extensions" json:"supported_extensions"`
	MaxUploadSizeMB     int      `mapstructure:"max_upload_size_mb" json:"max_upload_size_mb"`
	ChunkSize           int      `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int      `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Ollama
	OllamaHost      string `mapstructure:"ollama_host" json:"ollama_host"`
	ModelName       string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	GenerateTimeout int    `mapstructure:"generate_timeout_ms" json:"generate_timeout_ms"`

	// Retrieval
	SimilarityTopK int `mapstructure:"similarity_top_k" json:"similarity_top_k"`
	EmbeddingDim   int `mapstructure:"embedding_dim" json:"embedding_dim"`

	// Optional rendering engine for JS-heavy crawl targets
	RendererEnabled bool `mapstructure:"renderer_enabled" json:"renderer_enabled"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sitebrain")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Crawl defaults
	v.SetDefault("site_url", "https://www.example.com")
	v.SetDefault("seed_paths", []string{"/", "/products", "/faqs", "/contact-us"})
	v.SetDefault("max_pages", 10)
	v.SetDefault("crawl_delay_min_ms", 1000)
	v.SetDefault("crawl_delay_max_ms", 2500)
	v.SetDefault("fetch_timeout_ms", 10000)
	v.SetDefault("min_page_words", 50)

	// Ingestion defaults
	v.SetDefault("data_dir", "data")
	v.SetDefault("supported_extensions", []string{".txt", ".md", ".pdf", ".doc", ".docx"})
	v.SetDefault("max_upload_size_mb", 10)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)

	// Ollama defaults
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("model_name", "llama3")
	v.SetDefault("embedder_model", "nomic-embed-text")
	v.SetDefault("generate_timeout_ms", 120000)

	// Retrieval defaults
	v.SetDefault("similarity_top_k", 3)
	v.SetDefault("embedding_dim", 768)

	v.SetDefault("renderer_enabled", false)

	// PostgreSQL defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "sitebrain")
	v.SetDefault("postgres_password", "sitebrain_dev_password")
	v.SetDefault("postgres_db_name", "sitebrain")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("site_url", "SITEBRAIN_SITE_URL")
	mustBind("max_pages", "SITEBRAIN_MAX_PAGES")
	mustBind("data_dir", "SITEBRAIN_DATA_DIR")
	mustBind("ollama_host", "OLLAMA_HOST")
	mustBind("model_name", "SITEBRAIN_MODEL_NAME")
	mustBind("embedder_model", "SITEBRAIN_EMBEDDER_MODEL")
	mustBind("postgres_password", "SITEBRAIN_POSTGRES_PASSWORD")
}

// MaxUploadSizeBytes returns the upload cap in bytes.
func (c *Config) MaxUploadSizeBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// SeedURLs returns the absolute seed URLs for a crawl: the site root plus
// every configured seed path resolved against it.
func (c *Config) SeedURLs() []string {
	base := c.SiteURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}

	seen := make(map[string]bool, len(c.SeedPaths)+1)
	urls := make([]string, 0, len(c.SeedPaths)+1)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	add(base + "/")
	for _, p := range c.SeedPaths {
		if p == "" || p == "/" {
			continue
		}
		if p[0] != '/' {
			p = "/" + p
		}
		add(base + p)
	}
	return urls
}
