package gemini

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Embedder is an EmbeddingProvider backed by Gemini batch embeddings.
type Embedder struct {
	api        API
	model      string
	dimensions int
	timeout    time.Duration
}

func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	api, err := NewGenAIAdapter(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return NewEmbedderWithAPI(api, cfg), nil
}

func NewEmbedderWithAPI(api API, cfg Config) *Embedder {
	cfg = cfg.withDefaults()
	return &Embedder{
		api:        api,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.EmbeddingDimensions,
		timeout:    cfg.Timeout,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

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

	vectors, err := e.api.BatchEmbed(ctx, e.model, texts)
	if err != nil {
		return nil, domain.EmbeddingFailed(err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.EmbeddingFailed(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	for i, v := range vectors {
		switch {
		case len(v) < e.dimensions:
			return nil, domain.EmbeddingFailed(fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dimensions))
		case len(v) > e.dimensions:
			vectors[i] = truncate(v, e.dimensions)
		}
	}
	return vectors, nil
}

// truncate keeps the leading dims values and rescales them to unit length.
// gemini-embedding-001 is trained so that prefixes remain usable embeddings.
func truncate(v []float32, dims int) []float32 {
	out := make([]float32, dims)
	copy(out, v[:dims])

	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}

func (e *Embedder) Dimension() int {
	return e.dimensions
}

func (e *Embedder) Healthy(ctx context.Context) bool {
	return healthy(ctx, e.api, e.model, true)
}
