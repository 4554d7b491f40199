package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxRetries is the number of attempts before a job is failed.
	DefaultMaxRetries  = 3
	defaultBatchSize   = 10
	defaultConcurrency = 4
)

// IngestionJobRepository is the queue the processor drains.
type IngestionJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error)
	UpdateStatus(ctx context.Context, jobID string, status domain.IngestionJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// DocumentProcessor runs ingestion for one document.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) error
	MarkFailed(ctx context.Context, documentID string, cause error) error
}

// IngestionProcessorConfig bounds how much work a single poll picks up.
type IngestionProcessorConfig struct {
	BatchSize   int
	Concurrency int
	MaxRetries  int32
}

// IngestionJobProcessor claims queued ingestion jobs and runs them through
// the pipeline.
type IngestionJobProcessor struct {
	repo        IngestionJobRepository
	pipeline    DocumentProcessor
	batchSize   int
	concurrency int
	maxRetries  int32
}

// NewIngestionJobProcessor creates a new IngestionJobProcessor instance
func NewIngestionJobProcessor(repo IngestionJobRepository, pipeline DocumentProcessor, cfg IngestionProcessorConfig) *IngestionJobProcessor {
	p := &IngestionJobProcessor{
		repo:        repo,
		pipeline:    pipeline,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.concurrency <= 0 {
		p.concurrency = defaultConcurrency
	}
	if p.maxRetries <= 0 {
		p.maxRetries = DefaultMaxRetries
	}
	return p
}

// ProcessJobs implements the JobProcessor interface
func (p *IngestionJobProcessor) ProcessJobs(ctx context.Context) error {
	jobs, err := p.repo.ClaimPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Printf("worker: processing %d ingestion jobs", len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if err := p.processJob(gctx, job); err != nil {
				log.Printf("worker: job %s: %v", job.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *IngestionJobProcessor) processJob(ctx context.Context, job *domain.IngestionJob) error {
	ctx, span := telemetry.StartTransaction(ctx, "ingestion.job", "queue.process", telemetry.SpanAttributes{
		DocumentID: job.DocumentID,
		JobID:      job.ID,
		Operation:  "ingest",
	})
	defer span.End()

	err := p.pipeline.Process(ctx, job.DocumentID)
	if err == nil {
		if err := p.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusCompleted, ""); err != nil {
			return fmt.Errorf("failed to update job status to completed: %w", err)
		}
		return nil
	}

	// The document is gone; nothing left to retry.
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return p.finish(ctx, job, domain.IngestionJobStatusFailed, err.Error())
	}

	return p.handleJobFailure(ctx, job, err)
}

func (p *IngestionJobProcessor) handleJobFailure(ctx context.Context, job *domain.IngestionJob, jobErr error) error {
	log.Printf("worker: job %s for document %s failed: %v", job.ID, job.DocumentID, jobErr)

	if err := p.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	attempt := job.Retries + 1
	if attempt >= p.maxRetries {
		log.Printf("worker: job %s exceeded max retries (%d), marking as failed", job.ID, p.maxRetries)
		telemetry.CaptureError(ctx, fmt.Errorf("ingestion of document %s abandoned: %w", job.DocumentID, jobErr))
		if err := p.pipeline.MarkFailed(ctx, job.DocumentID, jobErr); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			return fmt.Errorf("failed to mark document failed: %w", err)
		}
		return p.finish(ctx, job, domain.IngestionJobStatusFailed, fmt.Sprintf("max retries exceeded: %v", jobErr))
	}

	log.Printf("worker: job %s will be retried (attempt %d/%d)", job.ID, attempt, p.maxRetries)
	telemetry.AddBreadcrumb(ctx, "ingestion", fmt.Sprintf("job %s requeued after attempt %d", job.ID, attempt))
	if err := p.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusPending, fmt.Sprintf("retry %d: %v", attempt, jobErr)); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	return nil
}

func (p *IngestionJobProcessor) finish(ctx context.Context, job *domain.IngestionJob, status domain.IngestionJobStatus, msg string) error {
	if err := p.repo.UpdateStatus(ctx, job.ID, status, msg); err != nil {
		return fmt.Errorf("failed to update job status to %s: %w", status, err)
	}
	return nil
}
