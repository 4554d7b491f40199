package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Embedder is an EmbeddingProvider backed by the OpenAI embeddings endpoint.
type Embedder struct {
	api        API
	model      string
	dimensions int
	timeout    time.Duration
}

// NewEmbedder creates an Embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrNoAPIKey
	}
	return NewEmbedderWithAPI(NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL), cfg), nil
}

// NewEmbedderWithAPI creates an Embedder on a custom API implementation.
func NewEmbedderWithAPI(api API, cfg Config) *Embedder {
	cfg = cfg.withDefaults()
	return &Embedder{
		api:        api,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.EmbeddingDimensions,
		timeout:    cfg.Timeout,
	}
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. The result has one vector per
// input, in input order; anything else fails the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, domain.EmbeddingFailed(ErrEmptyText)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := e.api.CreateEmbeddings(ctx, e.model, e.dimensions, texts)
	if err != nil {
		return nil, domain.EmbeddingFailed(fmt.Errorf("failed to create embeddings: %w", err))
	}
	if len(vectors) != len(texts) {
		return nil, domain.EmbeddingFailed(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	for i, v := range vectors {
		if len(v) != e.dimensions {
			return nil, domain.EmbeddingFailed(fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dimensions))
		}
	}
	return vectors, nil
}

// Dimension is the length of every vector this embedder returns.
func (e *Embedder) Dimension() int {
	return e.dimensions
}

// Healthy reports whether the embedding model is reachable.
func (e *Embedder) Healthy(ctx context.Context) bool {
	return healthy(ctx, e.api, e.model)
}
