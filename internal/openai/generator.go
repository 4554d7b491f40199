package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Generator is a GenerationProvider backed by chat completions.
type Generator struct {
	api     API
	model   string
	timeout time.Duration
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrNoAPIKey
	}
	return NewGeneratorWithAPI(NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL), cfg), nil
}

// NewGeneratorWithAPI creates a Generator on a custom API implementation.
func NewGeneratorWithAPI(api API, cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{api: api, model: cfg.GenerationModel, timeout: cfg.Timeout}
}

// Generate answers prompt with the model's default temperature.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt, nil)
}

// GenerateWithTemperature answers prompt with an explicit sampling temperature.
func (g *Generator) GenerateWithTemperature(ctx context.Context, prompt string, temperature float32) (string, error) {
	return g.complete(ctx, prompt, &temperature)
}

// Healthy reports whether the chat model is reachable.
func (g *Generator) Healthy(ctx context.Context) bool {
	return healthy(ctx, g.api, g.model)
}

func (g *Generator) complete(ctx context.Context, prompt string, temperature *float32) (string, error) {
	if prompt == "" {
		return "", domain.GenerationFailed(ErrEmptyText)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	answer, err := g.api.CreateCompletion(ctx, g.model, prompt, temperature)
	if err != nil {
		return "", domain.GenerationFailed(fmt.Errorf("failed to create completion: %w", err))
	}
	return answer, nil
}
