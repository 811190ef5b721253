// Package ollama wraps the official Ollama API client with the small
// surface the rest of the service needs: connectivity probing, text
// generation, and embedding.
package ollama

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/log"
)

// Client talks to a single Ollama server for both the chat model and the
// embedding model.
type Client struct {
	api           *api.Client
	model         string
	embedderModel string
	genTimeout    time.Duration
	logger        log.Logger
}

// New builds a Client from configuration. It does not contact the server;
// call Probe for that.
func New(cfg *config.Config, logger log.Logger) (*Client, error) {
	host, err := url.Parse(cfg.OllamaHost)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama host %q: %w", cfg.OllamaHost, err)
	}

	httpClient := &http.Client{Timeout: 0} // per-call timeouts via context

	return &Client{
		api:           api.NewClient(host, httpClient),
		model:         cfg.ModelName,
		embedderModel: cfg.EmbedderModel,
		genTimeout:    time.Duration(cfg.GenerateTimeout) * time.Millisecond,
		logger:        logger,
	}, nil
}

// Probe checks that the server is reachable and reports which of the two
// configured models it has pulled. A reachable server with missing models
// is not an error here; the caller decides how degraded it can run.
func (c *Client) Probe(ctx context.Context) (haveModel, haveEmbedder bool, err error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return false, false, fmt.Errorf("listing ollama models: %w", err)
	}

	for _, m := range resp.Models {
		if matchesModel(m.Name, c.model) {
			haveModel = true
		}
		if matchesModel(m.Name, c.embedderModel) {
			haveEmbedder = true
		}
	}

	c.logger.Debug("ollama probe",
		"models", len(resp.Models),
		"chat_model_present", haveModel,
		"embedder_present", haveEmbedder)
	return haveModel, haveEmbedder, nil
}

// matchesModel compares a server-reported model name against a configured
// one, tolerating an omitted ":latest" tag on either side.
func matchesModel(reported, configured string) bool {
	if reported == configured {
		return true
	}
	return strings.TrimSuffix(reported, ":latest") == strings.TrimSuffix(configured, ":latest")
}

// Ping performs a cheap liveness check against the server.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}

// Generate sends a prompt to the chat model and returns the complete
// response text, accumulating the streamed fragments in arrival order.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	var sb strings.Builder
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
	}
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", c.model, err)
	}
	return sb.String(), nil
}

// Embed returns the L2-normalized embedding of the given text. Normalizing
// client-side keeps cosine distance in the index well defined even if the
// model emits unnormalized vectors.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  c.embedderModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", c.embedderModel, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding with %s: empty vector returned", c.embedderModel)
	}
	return normalize(resp.Embedding), nil
}

// normalize converts to float32 and scales to unit length. Zero vectors
// pass through unscaled.
func normalize(v []float64) []float32 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}
