// Package openai implements embedding and generation providers on the
// OpenAI API or any server that speaks its protocol.
package openai

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions is the vector size of DefaultEmbeddingModel
	DefaultEmbeddingDimensions = 1536
	// DefaultGenerationModel is the chat model used to answer questions
	DefaultGenerationModel = openai.GPT4oMini
	// DefaultTimeout bounds a single API call
	DefaultTimeout = 60 * time.Second

	healthTimeout = 10 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoAPIKey is returned when no OpenAI API key is configured
	ErrNoAPIKey = errors.New("OpenAI API key not set")
	// ErrEmptyResponse is returned when the API answers without data
	ErrEmptyResponse = errors.New("empty response from OpenAI")
)

// API is the subset of the OpenAI API the providers use.
type API interface {
	CreateEmbeddings(ctx context.Context, model string, dimensions int, texts []string) ([][]float32, error)
	CreateCompletion(ctx context.Context, model, prompt string, temperature *float32) (string, error)
	Ping(ctx context.Context, model string) error
}

// Config configures the OpenAI providers.
type Config struct {
	APIKey              string
	BaseURL             string
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

// OpenAIAdapter implements API on the go-openai client.
type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAIAdapter creates an adapter. A non-empty baseURL points the client
// at an OpenAI-compatible server.
func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

// CreateEmbeddings embeds texts in one request and returns vectors in input order.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, model string, dimensions int, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	}
	// ada-002 rejects the dimensions parameter.
	if model != string(openai.AdaEmbeddingV2) {
		req.Dimensions = dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CreateCompletion sends prompt as a single user message.
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, model, prompt string, temperature *float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if temperature != nil {
		req.Temperature = *temperature
		// A zero temperature is dropped by omitempty.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping checks that model is reachable with the configured credentials.
func (a *OpenAIAdapter) Ping(ctx context.Context, model string) error {
	_, err := a.client.GetModel(ctx, model)
	return err
}

func healthy(ctx context.Context, api API, model string) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return api.Ping(ctx, model) == nil
}
