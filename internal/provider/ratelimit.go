package provider

import (
	"context"
	"math"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"golang.org/x/time/rate"
)

func newLimiter(rps float64) *rate.Limiter {
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimitedEmbedder throttles calls to an EmbeddingProvider. Health checks
// bypass the limiter.
type RateLimitedEmbedder struct {
	next    service.EmbeddingProvider
	limiter *rate.Limiter
}

// WithEmbeddingRateLimit wraps next when rps is positive.
func WithEmbeddingRateLimit(next service.EmbeddingProvider, rps float64) service.EmbeddingProvider {
	if rps <= 0 {
		return next
	}
	return &RateLimitedEmbedder{next: next, limiter: newLimiter(rps)}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, domain.EmbeddingFailed(err)
	}
	return r.next.Embed(ctx, text)
}

func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, domain.EmbeddingFailed(err)
	}
	return r.next.EmbedBatch(ctx, texts)
}

func (r *RateLimitedEmbedder) Dimension() int {
	return r.next.Dimension()
}

func (r *RateLimitedEmbedder) Healthy(ctx context.Context) bool {
	return r.next.Healthy(ctx)
}

// RateLimitedGenerator throttles calls to a GenerationProvider.
type RateLimitedGenerator struct {
	next    service.GenerationProvider
	limiter *rate.Limiter
}

// WithGenerationRateLimit wraps next when rps is positive.
func WithGenerationRateLimit(next service.GenerationProvider, rps float64) service.GenerationProvider {
	if rps <= 0 {
		return next
	}
	return &RateLimitedGenerator{next: next, limiter: newLimiter(rps)}
}

func (r *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", domain.GenerationFailed(err)
	}
	return r.next.Generate(ctx, prompt)
}

func (r *RateLimitedGenerator) GenerateWithTemperature(ctx context.Context, prompt string, temperature float32) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", domain.GenerationFailed(err)
	}
	return r.next.GenerateWithTemperature(ctx, prompt, temperature)
}

func (r *RateLimitedGenerator) Healthy(ctx context.Context) bool {
	return r.next.Healthy(ctx)
}
