// Package provider selects and wraps the embedding and generation backends
// named in the configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/gemini"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/service"
)

// NewEmbedder builds the configured EmbeddingProvider, rate limited when
// EMBEDDING_RPS is set.
func NewEmbedder(ctx context.Context, cfg *config.Config) (service.EmbeddingProvider, error) {
	var embedder service.EmbeddingProvider
	var err error

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		embedder, err = openai.NewEmbedder(openaiConfig(cfg))
	case config.ProviderGemini:
		embedder, err = gemini.NewEmbedder(ctx, geminiConfig(cfg))
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", cfg.EmbeddingProvider, err)
	}

	return WithEmbeddingRateLimit(embedder, cfg.EmbeddingRPS), nil
}

// NewGenerator builds the configured GenerationProvider, rate limited when
// GENERATION_RPS is set.
func NewGenerator(ctx context.Context, cfg *config.Config) (service.GenerationProvider, error) {
	var generator service.GenerationProvider
	var err error

	switch cfg.GenerationProvider {
	case config.ProviderOpenAI:
		generator, err = openai.NewGenerator(openaiConfig(cfg))
	case config.ProviderGemini:
		generator, err = gemini.NewGenerator(ctx, geminiConfig(cfg))
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s generator: %w", cfg.GenerationProvider, err)
	}

	return WithGenerationRateLimit(generator, cfg.GenerationRPS), nil
}

func openaiConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		GenerationModel:     cfg.GenerationModel,
		Timeout:             cfg.ProviderTimeout,
	}
}

func geminiConfig(cfg *config.Config) gemini.Config {
	return gemini.Config{
		APIKey:              cfg.GeminiAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		GenerationModel:     cfg.GenerationModel,
		Timeout:             cfg.ProviderTimeout,
	}
}
