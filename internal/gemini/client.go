// Package gemini implements embedding and generation providers on the
// Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultEmbeddingModel      = "gemini-embedding-001"
	DefaultEmbeddingDimensions = 3072
	DefaultGenerationModel     = "gemini-2.5-flash"
	DefaultTimeout             = 60 * time.Second

	healthTimeout = 10 * time.Second
)

var (
	ErrNoAPIKey      = errors.New("Gemini API key not set")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrEmptyResponse = errors.New("empty response from Gemini")
)

// API is the subset of the Gemini API the providers use.
type API interface {
	BatchEmbed(ctx context.Context, model string, texts []string) ([][]float32, error)
	Generate(ctx context.Context, model, prompt string, temperature *float32) (string, error)
	Ping(ctx context.Context, model string, embedding bool) error
}

// Config configures the Gemini providers.
type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	GenerationModel     string
	Timeout             time.Duration
}

func (c Config) withDefaults() Config {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.GenerationModel == "" {
		c.GenerationModel = DefaultGenerationModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// GenAIAdapter implements API on the generative-ai-go client.
type GenAIAdapter struct {
	client *genai.Client
}

func NewGenAIAdapter(ctx context.Context, apiKey string) (*GenAIAdapter, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GenAIAdapter{client: cl}, nil
}

func (a *GenAIAdapter) Close() error {
	return a.client.Close()
}

// BatchEmbed embeds all texts in one BatchEmbedContents call.
func (a *GenAIAdapter) BatchEmbed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	em := a.client.EmbeddingModel(model)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			return nil, ErrEmptyResponse
		}
		out = append(out, e.Values)
	}
	return out, nil
}

// Generate returns the text parts of the first candidate.
func (a *GenAIAdapter) Generate(ctx context.Context, model, prompt string, temperature *float32) (string, error) {
	m := a.client.GenerativeModel(model)
	if temperature != nil {
		m.SetTemperature(*temperature)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// Ping fetches model info to confirm the model exists and the key is valid.
func (a *GenAIAdapter) Ping(ctx context.Context, model string, embedding bool) error {
	var err error
	if embedding {
		_, err = a.client.EmbeddingModel(model).Info(ctx)
	} else {
		_, err = a.client.GenerativeModel(model).Info(ctx)
	}
	return err
}

func healthy(ctx context.Context, api API, model string, embedding bool) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return api.Ping(ctx, model, embedding) == nil
}
