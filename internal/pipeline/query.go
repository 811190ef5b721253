package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitebrain/sitebrain/internal/knowledge"
)

// promptTemplate is the fixed augmentation format. Retrieved chunks fill
// Context; optional caller-supplied facts fill Customer Data.
const promptTemplate = "Context: %s\nCustomer Data: %s\nQuestion: %s\nAnswer:"

// Question is one query against the knowledge base.
type Question struct {
	Text string
	// CustomerData carries caller-specific facts (account status, order
	// history) verbatim into the prompt. Optional.
	CustomerData string
}

// Answer is the generated response plus the origins of the chunks that
// grounded it.
type Answer struct {
	Text    string
	Sources []string
}

// Ask answers a question using retrieval-augmented generation. It refuses
// to run before initialization succeeds. An empty index still produces an
// answer; generation runs with an empty context.
func (s *Service) Ask(ctx context.Context, q Question) (Answer, error) {
	if !s.Status().Ready() {
		return Answer{}, fmt.Errorf("%w: status %s", ErrNotInitialized, s.Status())
	}
	if strings.TrimSpace(q.Text) == "" {
		return Answer{}, errors.New("question must not be empty")
	}

	contextText, sources, err := s.retrieve(ctx, q.Text)
	if err != nil {
		return Answer{}, err
	}

	prompt := fmt.Sprintf(promptTemplate, contextText, customerData(q), q.Text)

	text, err := s.models.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return Answer{Text: strings.TrimSpace(text), Sources: sources}, nil
}

// retrieve embeds the question and gathers the top matching chunks.
func (s *Service) retrieve(ctx context.Context, question string) (string, []string, error) {
	embedding, err := s.models.Embed(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("%w: embedding question: %v", ErrRetrieval, err)
	}

	results, err := s.index.Search(ctx, embedding, s.cfg.SimilarityTopK)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	return joinContext(results), uniqueSources(results), nil
}

// joinContext concatenates retrieved chunks in rank order.
func joinContext(results []knowledge.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}

// uniqueSources lists each contributing origin once, preserving rank
// order.
func uniqueSources(results []knowledge.Result) []string {
	seen := make(map[string]bool, len(results))
	var sources []string
	for _, r := range results {
		if r.Origin != "" && !seen[r.Origin] {
			seen[r.Origin] = true
			sources = append(sources, r.Origin)
		}
	}
	return sources
}

func customerData(q Question) string {
	if strings.TrimSpace(q.CustomerData) == "" {
		return "None"
	}
	return q.CustomerData
}
