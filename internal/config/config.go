package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docqa-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	EmbeddingProvider   string  `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL"`
	// EmbeddingDimensions of 0 uses the provider's native vector size.
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS"`
	EmbeddingBatchSize  int     `envconfig:"EMBEDDING_BATCH_SIZE" default:"64"`
	EmbeddingRPS        float64 `envconfig:"EMBEDDING_RPS" default:"0"`

	GenerationProvider string  `envconfig:"GENERATION_PROVIDER" default:"openai"`
	GenerationModel    string  `envconfig:"GENERATION_MODEL"`
	GenerationRPS      float64 `envconfig:"GENERATION_RPS" default:"0"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`

	ChunkSize       int `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap    int `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK            int `envconfig:"TOP_K" default:"5"`
	HistoryMessages int `envconfig:"HISTORY_MESSAGES" default:"6"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	WorkerBatchSize    int           `envconfig:"WORKER_BATCH_SIZE" default:"10"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerMaxRetries   int32         `envconfig:"WORKER_MAX_RETRIES" default:"3"`

	MaxUploadBytes     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.EmbeddingProvider = strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that envconfig cannot express as tags.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_SIZE=%d CHUNK_OVERLAP=%d: %w", c.ChunkSize, c.ChunkOverlap, domain.ErrInvalidChunkParameters)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must not be negative, got %d", c.EmbeddingDimensions)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}

	for _, p := range []struct{ name, value string }{
		{"EMBEDDING_PROVIDER", c.EmbeddingProvider},
		{"GENERATION_PROVIDER", c.GenerationProvider},
	} {
		switch p.value {
		case ProviderOpenAI, ProviderGemini:
		default:
			return fmt.Errorf("unknown %s %q (expected %s or %s)", p.name, p.value, ProviderOpenAI, ProviderGemini)
		}
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

// HasProviders reports whether credentials exist for both selected providers.
func (c *Config) HasProviders() bool {
	return c.hasCredentials(c.EmbeddingProvider) && c.hasCredentials(c.GenerationProvider)
}

func (c *Config) hasCredentials(provider string) bool {
	switch provider {
	case ProviderOpenAI:
		return c.HasOpenAI()
	case ProviderGemini:
		return c.HasGemini()
	}
	return false
}
