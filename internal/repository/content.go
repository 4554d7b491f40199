package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContentRepository keeps raw document bytes in Postgres. It is the blob
// store used when no S3 endpoint is configured.
type ContentRepository struct {
	db dbtx
}

func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{db: pool}
}

func (r *ContentRepository) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_contents (storage_key, content_type, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (storage_key) DO UPDATE
		 SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, created_at = now()`,
		key, contentType, data,
	)
	return err
}

func (r *ContentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM document_contents WHERE storage_key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete is idempotent.
func (r *ContentRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_contents WHERE storage_key = $1`, key)
	return err
}
