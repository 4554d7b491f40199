package gemini

import (
	"context"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Generator is a GenerationProvider backed by Gemini content generation.
type Generator struct {
	api     API
	model   string
	timeout time.Duration
}

func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	api, err := NewGenAIAdapter(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return NewGeneratorWithAPI(api, cfg), nil
}

func NewGeneratorWithAPI(api API, cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{api: api, model: cfg.GenerationModel, timeout: cfg.Timeout}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, nil)
}

func (g *Generator) GenerateWithTemperature(ctx context.Context, prompt string, temperature float32) (string, error) {
	return g.generate(ctx, prompt, &temperature)
}

func (g *Generator) Healthy(ctx context.Context) bool {
	return healthy(ctx, g.api, g.model, false)
}

func (g *Generator) generate(ctx context.Context, prompt string, temperature *float32) (string, error) {
	if prompt == "" {
		return "", domain.GenerationFailed(ErrEmptyText)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	answer, err := g.api.Generate(ctx, g.model, prompt, temperature)
	if err != nil {
		return "", domain.GenerationFailed(err)
	}
	return answer, nil
}
