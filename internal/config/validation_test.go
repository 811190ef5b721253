package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		SiteURL:             "https://www.example.com",
		SeedPaths:           []string{"/faqs"},
		MaxPages:            10,
		CrawlDelayMin:       1000,
		CrawlDelayMax:       2500,
		FetchTimeout:        10000,
		MinPageWords:        50,
		DataDir:             "data",
		SupportedExtensions: []string{".txt", ".md", ".pdf"},
		MaxUploadSizeMB:     10,
		ChunkSize:           1000,
		ChunkOverlap:        200,
		OllamaHost:          "http://localhost:11434",
		ModelName:           "llama3",
		EmbedderModel:       "nomic-embed-text",
		GenerateTimeout:     60000,
		SimilarityTopK:      3,
		EmbeddingDim:        768,
		PostgresHost:        "localhost",
		PostgresPort:        5432,
		PostgresUser:        "sitebrain",
		PostgresPassword:    "secret_password",
		PostgresDBName:      "sitebrain",
		PostgresSSLMode:     "disable",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "nil config",
			mutate:  nil,
			wantErr: ErrConfigNil,
		},
		{
			name:    "bad site scheme",
			mutate:  func(c *Config) { c.SiteURL = "ftp://example.com" },
			wantErr: ErrInvalidSiteURL,
		},
		{
			name:    "site URL without host",
			mutate:  func(c *Config) { c.SiteURL = "https://" },
			wantErr: ErrInvalidSiteURL,
		},
		{
			name:    "zero max pages",
			mutate:  func(c *Config) { c.MaxPages = 0 },
			wantErr: ErrInvalidMaxPages,
		},
		{
			name:    "delay window inverted",
			mutate:  func(c *Config) { c.CrawlDelayMin = 3000; c.CrawlDelayMax = 1000 },
			wantErr: ErrInvalidCrawlDelay,
		},
		{
			name:    "overlap equals size",
			mutate:  func(c *Config) { c.ChunkOverlap = c.ChunkSize },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap exceeds size",
			mutate:  func(c *Config) { c.ChunkOverlap = c.ChunkSize + 1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "bad ollama host",
			mutate:  func(c *Config) { c.OllamaHost = "not-a-url" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "top-k out of range",
			mutate:  func(c *Config) { c.SimilarityTopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "embedding dim out of range",
			mutate:  func(c *Config) { c.EmbeddingDim = 0 },
			wantErr: ErrInvalidEmbeddingDim,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrInvalidDataDir,
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.SupportedExtensions = []string{"txt"} },
			wantErr: ErrInvalidExtension,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg *Config
			if tt.mutate != nil {
				cfg = validConfig()
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeedURLs(t *testing.T) {
	cfg := validConfig()
	cfg.SiteURL = "https://www.example.com/"
	cfg.SeedPaths = []string{"/faqs", "contact-us", "/", ""}

	got := cfg.SeedURLs()
	want := []string{
		"https://www.example.com/",
		"https://www.example.com/faqs",
		"https://www.example.com/contact-us",
	}

	if len(got) != len(want) {
		t.Fatalf("SeedURLs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SeedURLs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPostgresConnectionString_QuotesPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "it's a secret"

	dsn := cfg.PostgresConnectionString()
	if want := `password='it\'s a secret'`; !strings.Contains(dsn, want) {
		t.Errorf("DSN %q missing quoted password %q", dsn, want)
	}
}
