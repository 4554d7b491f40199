package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, filename, content_type, size_bytes, status, metadata, chunk_count, storage_key, failure_reason, created_at, updated_at`

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Filename, d.ContentType, d.SizeBytes, d.Status, []byte(d.Metadata.OrEmpty()),
		d.ChunkCount, d.StorageKey, nullableString(d.FailureReason), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListWithCursor pages through documents newest first.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Page(items, limit, func(d *domain.Document) (string, time.Time) {
		return d.ID, d.CreatedAt
	})

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, chunkCount int) error {
	return r.execOne(ctx,
		`UPDATE documents
		 SET status = $2, chunk_count = $3, failure_reason = NULL, updated_at = $4
		 WHERE id = $1`,
		id, domain.DocumentStatusCompleted, chunkCount, time.Now().UTC(),
	)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, reason string, metadata domain.Metadata) error {
	return r.execOne(ctx,
		`UPDATE documents
		 SET status = $2, chunk_count = 0, failure_reason = $3, metadata = $4, updated_at = $5
		 WHERE id = $1`,
		id, domain.DocumentStatusFailed, reason, []byte(metadata.OrEmpty()), time.Now().UTC(),
	)
}

// ResetForReprocessing moves a document back to PROCESSING and drops the
// failure annotation left by a previous run.
func (r *DocumentRepository) ResetForReprocessing(ctx context.Context, id string) error {
	return r.execOne(ctx,
		`UPDATE documents
		 SET status = $2,
		     failure_reason = NULL,
		     metadata = CASE WHEN jsonb_typeof(metadata) = 'object' THEN metadata - $3::text ELSE metadata END,
		     updated_at = $4
		 WHERE id = $1`,
		id, domain.DocumentStatusProcessing, domain.MetadataKeyIngestionError, time.Now().UTC(),
	)
}

func (r *DocumentRepository) UpdateMetadata(ctx context.Context, id string, metadata domain.Metadata) error {
	return r.execOne(ctx,
		`UPDATE documents SET metadata = $2, updated_at = $3 WHERE id = $1`,
		id, []byte(metadata.OrEmpty()), time.Now().UTC(),
	)
}

// Delete removes a document; chunks and jobs go with it through the foreign keys.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *DocumentRepository) execOne(ctx context.Context, sql string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var metadata []byte
	var failureReason *string
	if err := row.Scan(&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Status, &metadata,
		&d.ChunkCount, &d.StorageKey, &failureReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Metadata = domain.Metadata(metadata)
	d.FailureReason = stringOrEmpty(failureReason)
	return &d, nil
}
