package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	MarkCompleted(ctx context.Context, id string, chunkCount int) error
	MarkFailed(ctx context.Context, id, reason string, metadata domain.Metadata) error
	ResetForReprocessing(ctx context.Context, id string) error
	UpdateMetadata(ctx context.Context, id string, metadata domain.Metadata) error
	Delete(ctx context.Context, id string) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// IngestionJobRepositoryInterface defines the repository interface for queueing ingestion runs
type IngestionJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	HasActiveJob(ctx context.Context, documentID string) (bool, error)
}

// BlobStore keeps the raw bytes of uploaded documents.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ContentTypeChecker reports whether a media type can be ingested.
type ContentTypeChecker interface {
	Supports(contentType string) bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService accepts uploads and manages documents outside the pipeline.
type DocumentService struct {
	docRepo  DocumentRepositoryInterface
	jobRepo  IngestionJobRepositoryInterface
	blobs    BlobStore
	txRunner TxRunner
	types    ContentTypeChecker
	uuidGen  UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	jobRepo IngestionJobRepositoryInterface,
	blobs BlobStore,
	txRunner TxRunner,
	types ContentTypeChecker,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(docRepo, jobRepo, blobs, txRunner, types, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	jobRepo IngestionJobRepositoryInterface,
	blobs BlobStore,
	txRunner TxRunner,
	types ContentTypeChecker,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docRepo:  docRepo,
		jobRepo:  jobRepo,
		blobs:    blobs,
		txRunner: txRunner,
		types:    types,
		uuidGen:  uuidGen,
	}
}

// UploadInput represents an uploaded file
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
	Metadata    domain.Metadata
}

type ListDocumentsInput struct {
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// Upload stores the file, creates the document in PROCESSING and queues its
// ingestion. The document is returned before any processing happens.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		Operation: "upload",
	})
	defer span.End()

	filename := filepath.Base(strings.TrimSpace(input.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(input.Data) == 0 {
		return nil, domain.ErrEmptyContent
	}

	contentType := extract.NormalizeContentType(input.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = extract.ContentTypeForFilename(filename)
	}
	if !s.types.Supports(contentType) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("unsupported content type %q", contentType), domain.ErrUnsupportedContentType)
	}
	if !input.Metadata.Valid() {
		return nil, domain.ErrInvalidMetadata
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(s.uuidGen.NewString(), filename, contentType, int64(len(input.Data)), input.Metadata.OrEmpty(), now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}
	job := domain.NewIngestionJob(s.uuidGen.NewString(), doc.ID, now)
	if err := domain.ValidateIngestionJob(job); err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, doc.StorageKey, input.Data, contentType); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to store document content: %w", err)
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IngestionJobs().Create(ctx, job)
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, doc.StorageKey); delErr != nil {
			log.Printf("documents: failed to remove orphaned content %s: %v", doc.StorageKey, delErr)
		}
		span.SetError(err)
		return nil, err
	}

	log.Printf("documents: queued %s (%s, %d bytes)", doc.ID, doc.ContentType, doc.SizeBytes)
	return doc, nil
}

// Get retrieves a document by ID
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Get", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.docRepo.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	result, err := s.docRepo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Reprocess resets a document to PROCESSING and queues a new ingestion run.
// A document that already has a pending or running job is rejected.
func (s *DocumentService) Reprocess(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Reprocess", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "reprocess",
	})
	defer span.End()

	if _, err := s.docRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	busy, err := s.jobRepo.HasActiveJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, domain.ErrDocumentBusy
	}

	job := domain.NewIngestionJob(s.uuidGen.NewString(), id, time.Now().UTC())
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().ResetForReprocessing(ctx, id); err != nil {
			return err
		}
		return repos.IngestionJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("documents: requeued %s", id)
	return s.docRepo.GetByID(ctx, id)
}

// UpdateMetadata replaces the opaque metadata of a document.
func (s *DocumentService) UpdateMetadata(ctx context.Context, id string, metadata domain.Metadata) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.UpdateMetadata", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "update",
	})
	defer span.End()

	if !metadata.Valid() {
		return nil, domain.ErrInvalidMetadata
	}
	if err := s.docRepo.UpdateMetadata(ctx, id, metadata.OrEmpty()); err != nil {
		return nil, err
	}
	return s.docRepo.GetByID(ctx, id)
}

// Delete removes a document with its chunks and jobs, then its stored content.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, id); err != nil {
			return err
		}
		return repos.Documents().Delete(ctx, id)
	})
	if err != nil {
		span.SetError(err)
		return err
	}

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		log.Printf("documents: failed to remove content %s: %v", doc.StorageKey, err)
	}
	return nil
}
