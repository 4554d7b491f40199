package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// hnswMaxDimensions is the largest vector size pgvector can index with HNSW.
const hnswMaxDimensions = 2000

// ChunkRepository stores document chunks and answers similarity queries.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
// Callers run it inside a transaction so readers never see a partial set.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if err := r.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID,
			documentID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			[]byte(c.Metadata.OrEmpty()),
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

// ListByDocument returns a document's chunks by index.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, chunk_index, content, embedding, metadata, created_at
		 FROM document_chunks
		 WHERE document_id = $1
		 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		var embedding *pgvector.Vector
		var metadata []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &embedding, &metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		if embedding != nil {
			c.Embedding = embedding.Slice()
		}
		c.Metadata = domain.Metadata(metadata)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchSimilar returns the chunks of COMPLETED documents closest to
// embedding by cosine similarity. Equal scores are ordered by the newer
// document first, then by chunk index.
//
// The HNSW scan runs iteratively so that chunks filtered out by document
// status do not shrink the result below limit.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SET LOCAL hnsw.iterative_scan = strict_order`); err != nil {
		return nil, fmt.Errorf("enable iterative scan: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT c.id, c.document_id, c.chunk_index, c.content, c.metadata, c.created_at, d.filename,
		        1 - (c.embedding <=> $1) AS similarity
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.status = $2 AND c.embedding IS NOT NULL
		 ORDER BY c.embedding <=> $1 ASC, d.created_at DESC, c.chunk_index ASC
		 LIMIT $3`,
		pgvector.NewVector(embedding), domain.DocumentStatusCompleted, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, limit)
	for rows.Next() {
		var sc domain.ScoredChunk
		var metadata []byte
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.ChunkIndex, &sc.Content, &metadata, &sc.CreatedAt, &sc.Filename, &sc.Similarity); err != nil {
			return nil, err
		}
		sc.Metadata = domain.Metadata(metadata)
		results = append(results, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, tx.Commit(ctx)
}

// Dimension returns the declared size of the embedding column, or -1 when
// the column has no fixed size.
func (r *ChunkRepository) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := r.db.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'`,
	).Scan(&dim)
	return dim, err
}

// EnsureDimension makes the embedding column match the active provider.
// The column is only retyped while no chunks exist; otherwise a mismatch is
// an error until the existing documents are deleted.
func (r *ChunkRepository) EnsureDimension(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	current, err := r.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("read embedding dimension: %w", err)
	}
	if current == dim {
		return nil
	}

	var populated bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM document_chunks)`).Scan(&populated); err != nil {
		return err
	}
	if populated {
		return fmt.Errorf("embedding column has dimension %d but the provider produces %d; delete existing documents first", current, dim)
	}

	statements := []string{
		`DROP INDEX IF EXISTS document_chunks_embedding_idx`,
		fmt.Sprintf(`ALTER TABLE document_chunks ALTER COLUMN embedding TYPE vector(%d)`, dim),
	}
	if dim <= hnswMaxDimensions {
		statements = append(statements,
			`CREATE INDEX document_chunks_embedding_idx ON document_chunks USING hnsw (embedding vector_cosine_ops)`)
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("resize embedding column: %w", err)
		}
	}
	return nil
}
