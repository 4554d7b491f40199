package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const defaultEmbeddingBatchSize = 64

// ContentExtractor turns raw document bytes into plain text.
type ContentExtractor interface {
	Supports(contentType string) bool
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

// EmbeddingProvider maps text to fixed-dimension vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Healthy(ctx context.Context) bool
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence and search
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredChunk, error)
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	Chunk          ChunkConfig
	EmbeddingBatch int
}

// IngestionPipeline drives a document from PROCESSING to COMPLETED or FAILED.
type IngestionPipeline struct {
	docRepo   DocumentRepositoryInterface
	blobs     BlobStore
	extractor ContentExtractor
	chunker   *Chunker
	embedder  EmbeddingProvider
	txRunner  TxRunner
	batchSize int
	uuidGen   UUIDGenerator
}

// NewIngestionPipeline creates a new IngestionPipeline. It fails when the
// chunk parameters are invalid.
func NewIngestionPipeline(
	docRepo DocumentRepositoryInterface,
	blobs BlobStore,
	extractor ContentExtractor,
	embedder EmbeddingProvider,
	txRunner TxRunner,
	cfg IngestionConfig,
) (*IngestionPipeline, error) {
	return NewIngestionPipelineWithUUIDGen(docRepo, blobs, extractor, embedder, txRunner, cfg, &DefaultUUIDGenerator{})
}

// NewIngestionPipelineWithUUIDGen creates an IngestionPipeline with a custom UUID generator (for testing)
func NewIngestionPipelineWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	blobs BlobStore,
	extractor ContentExtractor,
	embedder EmbeddingProvider,
	txRunner TxRunner,
	cfg IngestionConfig,
	uuidGen UUIDGenerator,
) (*IngestionPipeline, error) {
	if cfg.Chunk == (ChunkConfig{}) {
		cfg.Chunk = DefaultChunkConfig()
	}
	chunker, err := NewChunker(cfg.Chunk)
	if err != nil {
		return nil, err
	}

	batchSize := cfg.EmbeddingBatch
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}

	return &IngestionPipeline{
		docRepo:   docRepo,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		txRunner:  txRunner,
		batchSize: batchSize,
		uuidGen:   uuidGen,
	}, nil
}

// Process runs the pipeline for one document. Content problems end in the
// FAILED state and are not returned; only storage errors are, so the caller
// can retry the run.
func (p *IngestionPipeline) Process(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionPipeline.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := p.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status.IsTerminal() {
		log.Printf("ingestion: document %s is %s, skipping", doc.ID, doc.Status)
		return nil
	}

	data, err := p.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return p.fail(ctx, doc, err)
		}
		span.SetError(err)
		return fmt.Errorf("failed to load document content: %w", err)
	}

	text, err := p.extractor.Extract(ctx, data, doc.ContentType)
	if err != nil {
		if !isContentError(err) {
			err = domain.ExtractionFailed(doc.ContentType, err)
		}
		return p.fail(ctx, doc, err)
	}

	if strings.TrimSpace(text) == "" {
		return p.complete(ctx, doc, nil)
	}

	pieces := p.chunker.Split(text)
	vectors, err := p.embedAll(ctx, pieces)
	if err != nil {
		return p.fail(ctx, doc, err)
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = domain.Chunk{
			ID:         p.uuidGen.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vectors[i],
			Metadata:   domain.EmptyMetadata,
			CreatedAt:  now,
		}
	}

	return p.complete(ctx, doc, chunks)
}

// embedAll embeds pieces in order, in sub-batches. Any failure or malformed
// response fails the whole set.
func (p *IngestionPipeline) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	dim := p.embedder.Dimension()
	vectors := make([][]float32, 0, len(pieces))

	for start := 0; start < len(pieces); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pieces) {
			end = len(pieces)
		}

		batch, err := p.embedder.EmbedBatch(ctx, pieces[start:end])
		if err != nil {
			return nil, asEmbeddingFailure(err)
		}
		if len(batch) != end-start {
			return nil, domain.EmbeddingFailed(fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch)))
		}
		for i, v := range batch {
			if len(v) != dim {
				return nil, domain.EmbeddingFailed(fmt.Errorf("embedding %d has dimension %d, want %d", start+i, len(v), dim))
			}
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (p *IngestionPipeline) complete(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	err := p.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if len(chunks) == 0 {
			if err := repos.Chunks().DeleteByDocument(ctx, doc.ID); err != nil {
				return err
			}
		} else if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		return repos.Documents().MarkCompleted(ctx, doc.ID, len(chunks))
	})
	if err != nil {
		return fmt.Errorf("failed to complete document %s: %w", doc.ID, err)
	}

	log.Printf("ingestion: document %s completed with %d chunks", doc.ID, len(chunks))
	return nil
}

func (p *IngestionPipeline) fail(ctx context.Context, doc *domain.Document, cause error) error {
	reason := cause.Error()
	metadata, ok := doc.Metadata.WithField(domain.MetadataKeyIngestionError, reason)
	if !ok {
		metadata = doc.Metadata
	}

	err := p.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}
		return repos.Documents().MarkFailed(ctx, doc.ID, reason, metadata)
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s failed: %w", doc.ID, err)
	}

	log.Printf("ingestion: document %s failed: %s", doc.ID, reason)
	return nil
}

// MarkFailed records a failure reason for a document whose ingestion could
// not be completed, e.g. after its job ran out of retries.
func (p *IngestionPipeline) MarkFailed(ctx context.Context, documentID string, cause error) error {
	doc, err := p.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != domain.DocumentStatusProcessing {
		return nil
	}
	return p.fail(ctx, doc, cause)
}

func isContentError(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeUnreadableContent, domain.ErrCodeExtractionFailed:
		return true
	}
	return false
}
