package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/provider"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the components shared by the commands. Providers are only
// created for commands that embed or generate.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool

	blobs         service.BlobStore
	chunks        *repository.ChunkRepository
	ingestionJobs *repository.IngestionJobRepository
	documents     *service.DocumentService

	embedder  service.EmbeddingProvider
	generator service.GenerationProvider
	ingestion *service.IngestionPipeline
	query     *service.QueryPipeline
}

type appOptions struct {
	migrate   bool
	providers bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	if opts.migrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{
		cfg:           cfg,
		pool:          pool,
		chunks:        repository.NewChunkRepository(pool),
		ingestionJobs: repository.NewIngestionJobRepository(pool),
	}

	a.blobs, err = newBlobStore(ctx, cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	extractors := extract.NewDefaultRegistry()
	docRepo := repository.NewDocumentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	a.documents = service.NewDocumentService(docRepo, a.ingestionJobs, a.blobs, txRunner, extractors)

	if !opts.providers {
		return a, nil
	}

	if !cfg.HasProviders() {
		pool.Close()
		return nil, fmt.Errorf("no credentials for providers %q/%q: set DOCQA_OPENAI_API_KEY or DOCQA_GEMINI_API_KEY",
			cfg.EmbeddingProvider, cfg.GenerationProvider)
	}

	a.embedder, err = provider.NewEmbedder(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.generator, err = provider.NewGenerator(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create generation provider: %w", err)
	}

	a.ingestion, err = service.NewIngestionPipeline(docRepo, a.blobs, extractors, a.embedder, txRunner, service.IngestionConfig{
		Chunk:          service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		EmbeddingBatch: cfg.EmbeddingBatchSize,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	a.query = service.NewQueryPipeline(
		repository.NewConversationRepository(pool),
		repository.NewMessageRepository(pool),
		a.chunks,
		a.embedder,
		a.generator,
		service.QueryConfig{TopK: cfg.TopK, HistoryMessages: cfg.HistoryMessages},
	)

	return a, nil
}

// ensureVectorDimension aligns the embedding column with the active embedder.
func (a *app) ensureVectorDimension(ctx context.Context) error {
	if err := a.chunks.EnsureDimension(ctx, a.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to prepare vector column: %w", err)
	}
	return nil
}

// newWorker builds the ingestion worker after requeueing jobs a previous
// process left in processing.
func (a *app) newWorker(ctx context.Context) (*jobs.Worker, error) {
	requeued, err := a.ingestionJobs.RequeueStale(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	if requeued > 0 {
		log.Printf("worker: requeued %d interrupted jobs", requeued)
	}

	processor := jobs.NewIngestionJobProcessor(a.ingestionJobs, a.ingestion, jobs.IngestionProcessorConfig{
		BatchSize:   a.cfg.WorkerBatchSize,
		Concurrency: a.cfg.WorkerConcurrency,
		MaxRetries:  a.cfg.WorkerMaxRetries,
	})
	return jobs.NewWorker(processor, a.cfg.WorkerPollInterval), nil
}

// history returns a pipeline able to read conversations. Reading needs no
// providers, so one is built without them when the app has none.
func (a *app) history() *service.QueryPipeline {
	if a.query != nil {
		return a.query
	}
	return service.NewQueryPipeline(
		repository.NewConversationRepository(a.pool),
		repository.NewMessageRepository(a.pool),
		a.chunks,
		nil,
		nil,
		service.QueryConfig{TopK: a.cfg.TopK},
	)
}

func (a *app) close() {
	a.pool.Close()
}

func newBlobStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (service.BlobStore, error) {
	if !cfg.HasS3() {
		return repository.NewContentRepository(pool), nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("storage: using S3 bucket '%s'", cfg.S3Bucket)
	return s3Client, nil
}
