package provider

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/gemini"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int                  { return 1 }
func (c *countingEmbedder) Healthy(ctx context.Context) bool { return true }

type countingGenerator struct {
	calls int
}

func (c *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	c.calls++
	return "ok", nil
}

func (c *countingGenerator) GenerateWithTemperature(ctx context.Context, prompt string, temperature float32) (string, error) {
	c.calls++
	return "ok", nil
}

func (c *countingGenerator) Healthy(ctx context.Context) bool { return true }

func testConfig() *config.Config {
	return &config.Config{
		EmbeddingProvider:   config.ProviderOpenAI,
		GenerationProvider:  config.ProviderOpenAI,
		EmbeddingDimensions: 8,
		ProviderTimeout:     time.Second,
		OpenAIAPIKey:        "sk-test",
	}
}

func TestNewEmbedder_OpenAI(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), testConfig())

	require.NoError(t, err)
	assert.IsType(t, &openai.Embedder{}, embedder)
	assert.Equal(t, 8, embedder.Dimension())
}

func TestNewEmbedder_DefaultDimensions(t *testing.T) {
	cfg := testConfig()
	cfg.EmbeddingDimensions = 0

	embedder, err := NewEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultEmbeddingDimensions, embedder.Dimension())

	cfg.EmbeddingProvider = config.ProviderGemini
	cfg.GeminiAPIKey = "gm-test"

	embedder, err = NewEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &gemini.Embedder{}, embedder)
	assert.Equal(t, 3072, embedder.Dimension())
}

func TestNewEmbedder_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.EmbeddingRPS = 2

	embedder, err := NewEmbedder(context.Background(), cfg)

	require.NoError(t, err)
	assert.IsType(t, &RateLimitedEmbedder{}, embedder)
	assert.Equal(t, 8, embedder.Dimension())
}

func TestNewGenerator_OpenAI(t *testing.T) {
	generator, err := NewGenerator(context.Background(), testConfig())

	require.NoError(t, err)
	assert.IsType(t, &openai.Generator{}, generator)
}

func TestNewGenerator_Gemini(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationProvider = config.ProviderGemini
	cfg.GeminiAPIKey = "gm-test"

	generator, err := NewGenerator(context.Background(), cfg)

	require.NoError(t, err)
	assert.IsType(t, &gemini.Generator{}, generator)
}

func TestNewEmbedder_MissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.EmbeddingProvider = config.ProviderGemini

	_, err := NewEmbedder(context.Background(), cfg)
	assert.ErrorIs(t, err, gemini.ErrNoAPIKey)

	cfg = testConfig()
	cfg.OpenAIAPIKey = ""
	_, err = NewGenerator(context.Background(), cfg)
	assert.ErrorIs(t, err, openai.ErrNoAPIKey)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.EmbeddingProvider = "cohere"

	_, err := NewEmbedder(context.Background(), cfg)
	assert.Error(t, err)
}

func TestWithRateLimit_DisabledReturnsNext(t *testing.T) {
	embedder := &countingEmbedder{}
	generator := &countingGenerator{}

	assert.Same(t, embedder, WithEmbeddingRateLimit(embedder, 0))
	assert.Same(t, generator, WithGenerationRateLimit(generator, -1))
}

func TestRateLimitedEmbedder_Throttles(t *testing.T) {
	inner := &countingEmbedder{}
	limited := WithEmbeddingRateLimit(inner, 10)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 12; i++ {
		_, err := limited.EmbedBatch(ctx, []string{"a"})
		require.NoError(t, err)
	}

	// The burst covers the first ten calls; the rest wait about 100ms each.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 12, inner.calls)
	assert.True(t, limited.Healthy(ctx))
}

func TestRateLimitedEmbedder_CancelledContext(t *testing.T) {
	inner := &countingEmbedder{}
	limited := WithEmbeddingRateLimit(inner, 0.001)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := limited.Embed(ctx, "first")
	require.NoError(t, err)

	cancel()
	_, err = limited.Embed(ctx, "second")
	assert.True(t, domain.IsCode(err, domain.ErrCodeEmbeddingFailed))
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedGenerator_CancelledContext(t *testing.T) {
	inner := &countingGenerator{}
	limited := WithGenerationRateLimit(inner, 0.001)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := limited.GenerateWithTemperature(ctx, "first", 0.5)
	require.NoError(t, err)

	cancel()
	_, err = limited.Generate(ctx, "second")
	assert.True(t, domain.IsCode(err, domain.ErrCodeGenerationFailed))
	assert.Equal(t, 1, inner.calls)
}
