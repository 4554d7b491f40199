package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// GenerationProvider produces answer text from a prompt.
type GenerationProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithTemperature(ctx context.Context, prompt string, temperature float32) (string, error)
	Healthy(ctx context.Context) bool
}

// ConversationRepositoryInterface defines the repository interface for conversations
type ConversationRepositoryInterface interface {
	GetOrCreate(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageRepositoryInterface defines the repository interface for conversation messages
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error)
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}

// ChunkSearcher finds the chunks nearest to a query vector.
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredChunk, error)
}

// QueryConfig tunes retrieval and prompt assembly.
type QueryConfig struct {
	TopK            int
	HistoryMessages int
}

// QueryPipeline answers questions within a session.
type QueryPipeline struct {
	convRepo  ConversationRepositoryInterface
	msgRepo   MessageRepositoryInterface
	searcher  ChunkSearcher
	embedder  EmbeddingProvider
	generator GenerationProvider
	cfg       QueryConfig
	uuidGen   UUIDGenerator
}

// NewQueryPipeline creates a new QueryPipeline instance
func NewQueryPipeline(
	convRepo ConversationRepositoryInterface,
	msgRepo MessageRepositoryInterface,
	searcher ChunkSearcher,
	embedder EmbeddingProvider,
	generator GenerationProvider,
	cfg QueryConfig,
) *QueryPipeline {
	return NewQueryPipelineWithUUIDGen(convRepo, msgRepo, searcher, embedder, generator, cfg, &DefaultUUIDGenerator{})
}

// NewQueryPipelineWithUUIDGen creates a QueryPipeline with a custom UUID generator (for testing)
func NewQueryPipelineWithUUIDGen(
	convRepo ConversationRepositoryInterface,
	msgRepo MessageRepositoryInterface,
	searcher ChunkSearcher,
	embedder EmbeddingProvider,
	generator GenerationProvider,
	cfg QueryConfig,
	uuidGen UUIDGenerator,
) *QueryPipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.HistoryMessages < 0 {
		cfg.HistoryMessages = 0
	}
	return &QueryPipeline{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		searcher:  searcher,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		uuidGen:   uuidGen,
	}
}

// AskInput is one user turn
type AskInput struct {
	SessionID   string
	Message     string
	Temperature *float32
	// TopK overrides the configured number of retrieved chunks when positive.
	TopK int
}

// AskOutput is the persisted answer to a turn
type AskOutput struct {
	ConversationID string
	MessageID      string
	Answer         string
	Sources        []domain.MessageSource
}

type HistoryOutput struct {
	Conversation *domain.Conversation
	Messages     []*domain.Message
}

// Ask records the question, retrieves context, generates an answer and
// records it with its sources. When embedding or generation fails the
// question stays on record without an answer.
func (q *QueryPipeline) Ask(ctx context.Context, input AskInput) (*AskOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryPipeline.Ask", telemetry.SpanAttributes{
		SessionID: input.SessionID,
		Operation: "ask",
	})
	defer span.End()

	topK, err := q.validate(input)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv, err := q.convRepo.GetOrCreate(ctx, domain.NewConversation(q.uuidGen.NewString(), input.SessionID, input.Message, now))
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		ID:             q.uuidGen.NewString(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleUser,
		Content:        input.Message,
		Metadata:       domain.EmptyMetadata,
		CreatedAt:      now,
	}
	if err := q.msgRepo.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := q.priorTurns(ctx, conv.ID, userMsg.ID)
	if err != nil {
		return nil, err
	}

	vector, err := q.embedder.Embed(ctx, input.Message)
	if err != nil {
		span.SetError(err)
		return nil, asEmbeddingFailure(err)
	}

	hits, err := q.searcher.SearchSimilar(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(input.Message, hits, history)

	var answer string
	if input.Temperature != nil {
		answer, err = q.generator.GenerateWithTemperature(ctx, prompt, *input.Temperature)
	} else {
		answer, err = q.generator.Generate(ctx, prompt)
	}
	if err != nil {
		span.SetError(err)
		return nil, asGenerationFailure(err)
	}

	sources := make([]domain.MessageSource, len(hits))
	for i, h := range hits {
		sources[i] = domain.MessageSource{
			DocumentID: h.DocumentID,
			ChunkID:    h.ID,
			ChunkIndex: h.ChunkIndex,
			Score:      h.Similarity,
		}
	}

	assistantMsg := &domain.Message{
		ID:             q.uuidGen.NewString(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        answer,
		Sources:        sources,
		Metadata:       answerMetadata(topK, input.Temperature),
		CreatedAt:      time.Now().UTC(),
	}
	if err := q.msgRepo.Create(ctx, assistantMsg); err != nil {
		return nil, err
	}

	if err := q.convRepo.Touch(ctx, conv.ID, assistantMsg.CreatedAt); err != nil {
		log.Printf("query: failed to touch conversation %s: %v", conv.ID, err)
	}

	return &AskOutput{
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		Answer:         answer,
		Sources:        sources,
	}, nil
}

// History returns a session's conversation with its messages in order.
func (q *QueryPipeline) History(ctx context.Context, sessionID string) (*HistoryOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryPipeline.History", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "history",
	})
	defer span.End()

	conv, err := q.convRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages, err := q.msgRepo.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{Conversation: conv, Messages: messages}, nil
}

func (q *QueryPipeline) validate(input AskInput) (int, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "session ID is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}
	if t := input.Temperature; t != nil && (*t < 0 || *t > 2) {
		return 0, domain.ErrInvalidTemperature
	}
	if input.TopK < 0 || input.TopK > maxTopK {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
	}

	if input.TopK > 0 {
		return input.TopK, nil
	}
	return q.cfg.TopK, nil
}

// priorTurns returns up to HistoryMessages messages preceding the current one.
func (q *QueryPipeline) priorTurns(ctx context.Context, conversationID, currentID string) ([]*domain.Message, error) {
	if q.cfg.HistoryMessages == 0 {
		return nil, nil
	}

	recent, err := q.msgRepo.ListRecent(ctx, conversationID, q.cfg.HistoryMessages+1)
	if err != nil {
		return nil, err
	}

	prior := make([]*domain.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID != currentID {
			prior = append(prior, m)
		}
	}
	if len(prior) > q.cfg.HistoryMessages {
		prior = prior[len(prior)-q.cfg.HistoryMessages:]
	}
	return prior, nil
}

func answerMetadata(topK int, temperature *float32) domain.Metadata {
	fields := map[string]any{"top_k": topK}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return domain.EmptyMetadata
	}
	return domain.Metadata(out)
}

func asEmbeddingFailure(err error) error {
	if domain.IsCode(err, domain.ErrCodeEmbeddingFailed) {
		return err
	}
	return domain.EmbeddingFailed(err)
}

func asGenerationFailure(err error) error {
	if domain.IsCode(err, domain.ErrCodeGenerationFailed) {
		return err
	}
	return domain.GenerationFailed(err)
}
