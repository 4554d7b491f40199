package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ingestionFixture struct {
	docs      *MockDocumentRepository
	chunks    *MockChunkRepository
	blobs     *MockBlobStore
	extractor *MockExtractor
	embedder  *MockEmbeddingProvider
	tx        *testTxRunner
	pipeline  *IngestionPipeline
}

func newIngestionFixture(t *testing.T, cfg IngestionConfig) *ingestionFixture {
	t.Helper()

	f := &ingestionFixture{
		docs:      new(MockDocumentRepository),
		chunks:    new(MockChunkRepository),
		blobs:     new(MockBlobStore),
		extractor: new(MockExtractor),
		embedder:  &MockEmbeddingProvider{dim: 3},
	}
	f.tx = &testTxRunner{repos: &testTxRepos{documents: f.docs, chunks: f.chunks}}

	pipeline, err := NewIngestionPipelineWithUUIDGen(f.docs, f.blobs, f.extractor, f.embedder, f.tx, cfg, NewMockUUIDGenerator())
	require.NoError(t, err)
	f.pipeline = pipeline
	return f
}

func (f *ingestionFixture) assertExpectations(t *testing.T) {
	f.docs.AssertExpectations(t)
	f.chunks.AssertExpectations(t)
	f.blobs.AssertExpectations(t)
	f.extractor.AssertExpectations(t)
	f.embedder.AssertExpectations(t)
}

func processingDoc() *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		Filename:    "notes.txt",
		ContentType: "text/plain",
		Status:      domain.DocumentStatusProcessing,
		Metadata:    domain.Metadata(`{"team":"ops"}`),
		StorageKey:  "documents/doc-1",
	}
}

func vectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		v[i%dim] = float32(i + 1)
		out[i] = v
	}
	return out
}

func smallChunks() IngestionConfig {
	return IngestionConfig{Chunk: ChunkConfig{Size: 60, Overlap: 10}}
}

func TestNewIngestionPipeline_InvalidChunkConfig(t *testing.T) {
	_, err := NewIngestionPipeline(nil, nil, nil, nil, nil, IngestionConfig{Chunk: ChunkConfig{Size: 10, Overlap: 10}})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidChunkParameters))
}

func TestIngestionPipeline_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("completes with contiguous embedded chunks", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		text := numberedText(6, 5)
		pieces, err := SplitText(text, 60, 10)
		require.NoError(t, err)
		require.Greater(t, len(pieces), 1)

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte(text), nil)
		f.extractor.On("Extract", mock.Anything, []byte(text), "text/plain").Return(text, nil)
		f.embedder.On("EmbedBatch", mock.Anything, pieces).Return(vectors(len(pieces), 3), nil)
		f.chunks.On("ReplaceChunks", mock.Anything, "doc-1", mock.MatchedBy(func(chunks []domain.Chunk) bool {
			if len(chunks) != len(pieces) {
				return false
			}
			for i, c := range chunks {
				if c.ChunkIndex != i || c.Content != pieces[i] || len(c.Embedding) != 3 || c.DocumentID != "doc-1" {
					return false
				}
			}
			return true
		})).Return(nil)
		f.docs.On("MarkCompleted", mock.Anything, "doc-1", len(pieces)).Return(nil)

		err = f.pipeline.Process(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, 1, f.tx.called)
		f.assertExpectations(t)
	})

	t.Run("embeds in order-preserving sub-batches", func(t *testing.T) {
		cfg := smallChunks()
		cfg.EmbeddingBatch = 2
		f := newIngestionFixture(t, cfg)
		text := numberedText(10, 5)
		pieces, err := SplitText(text, 60, 10)
		require.NoError(t, err)
		require.Greater(t, len(pieces), 3)

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte(text), nil)
		f.extractor.On("Extract", mock.Anything, []byte(text), "text/plain").Return(text, nil)
		for start := 0; start < len(pieces); start += 2 {
			end := start + 2
			if end > len(pieces) {
				end = len(pieces)
			}
			f.embedder.On("EmbedBatch", mock.Anything, pieces[start:end]).Return(vectors(end-start, 3), nil).Once()
		}
		f.chunks.On("ReplaceChunks", mock.Anything, "doc-1", mock.MatchedBy(func(chunks []domain.Chunk) bool {
			return len(chunks) == len(pieces)
		})).Return(nil)
		f.docs.On("MarkCompleted", mock.Anything, "doc-1", len(pieces)).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.assertExpectations(t)
	})

	t.Run("blank text completes with zero chunks", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte("  "), nil)
		f.extractor.On("Extract", mock.Anything, []byte("  "), "text/plain").Return("  \n", nil)
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkCompleted", mock.Anything, "doc-1", 0).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
		f.chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("unreadable content fails the document with its reason", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		doc := processingDoc()
		doc.ContentType = "application/pdf"
		extractErr := domain.UnreadableContent("application/pdf", errors.New("document is encrypted"))

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte("%PDF-1.7"), nil)
		f.extractor.On("Extract", mock.Anything, []byte("%PDF-1.7"), "application/pdf").Return("", extractErr)
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)

		var gotMeta domain.Metadata
		var gotReason string
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				gotReason = args.String(2)
				gotMeta = args.Get(3).(domain.Metadata)
			}).Return(nil)

		err := f.pipeline.Process(ctx, "doc-1")

		require.NoError(t, err)
		assert.Contains(t, gotReason, domain.ErrCodeUnreadableContent)
		assert.Contains(t, gotReason, "encrypted")

		var fields map[string]string
		require.NoError(t, json.Unmarshal(gotMeta, &fields))
		assert.Equal(t, "ops", fields["team"])
		assert.Equal(t, gotReason, fields[domain.MetadataKeyIngestionError])

		f.chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
		f.embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("untyped extractor error is reported as extraction failure", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte("x"), nil)
		f.extractor.On("Extract", mock.Anything, []byte("x"), "text/plain").Return("", errors.New("boom"))
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.MatchedBy(func(reason string) bool {
			return containsAll(reason, domain.ErrCodeExtractionFailed, "boom")
		}), mock.Anything).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.assertExpectations(t)
	})

	t.Run("embedding failure fails the document without chunks", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		text := numberedText(4, 5)

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte(text), nil)
		f.extractor.On("Extract", mock.Anything, []byte(text), "text/plain").Return(text, nil)
		f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("backend unavailable"))
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.MatchedBy(func(reason string) bool {
			return containsAll(reason, domain.ErrCodeEmbeddingFailed, "backend unavailable")
		}), mock.Anything).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
		f.docs.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("short embedding response fails the whole batch", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		text := numberedText(6, 5)

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte(text), nil)
		f.extractor.On("Extract", mock.Anything, []byte(text), "text/plain").Return(text, nil)
		f.embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(vectors(1, 3), nil)
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("dimension mismatch fails the document", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		text := "One short sentence."

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte(text), nil)
		f.extractor.On("Extract", mock.Anything, []byte(text), "text/plain").Return(text, nil)
		f.embedder.On("EmbedBatch", mock.Anything, []string{text}).Return([][]float32{{1, 2}}, nil)
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.MatchedBy(func(reason string) bool {
			return containsAll(reason, "dimension 2")
		}), mock.Anything).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.assertExpectations(t)
	})

	t.Run("missing content fails the document", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return(nil, domain.ErrBlobNotFound)
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("storage error is returned for retry", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return(nil, errors.New("connection reset"))

		err := f.pipeline.Process(ctx, "doc-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, 0, f.tx.called)
		f.assertExpectations(t)
	})

	t.Run("transaction error while completing is returned", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		f.tx.err = errors.New("tx begin failed")

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte(""), nil)
		f.extractor.On("Extract", mock.Anything, []byte(""), "text/plain").Return("", nil)

		err := f.pipeline.Process(ctx, "doc-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "tx begin failed")
		f.assertExpectations(t)
	})

	t.Run("skips documents that are no longer processing", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		doc := processingDoc()
		doc.Status = domain.DocumentStatusCompleted

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.blobs.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("unknown document is returned as not found", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())

		f.docs.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

		err := f.pipeline.Process(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("non-object metadata is left untouched on failure", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		doc := processingDoc()
		doc.Metadata = domain.Metadata(`["a","b"]`)

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
		f.blobs.On("Get", mock.Anything, "documents/doc-1").Return([]byte("x"), nil)
		f.extractor.On("Extract", mock.Anything, []byte("x"), "text/plain").Return("", domain.ExtractionFailed("text/plain", errors.New("bad")))
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything, domain.Metadata(`["a","b"]`)).Return(nil)

		require.NoError(t, f.pipeline.Process(ctx, "doc-1"))
		f.assertExpectations(t)
	})
}

func TestIngestionPipeline_MarkFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("fails a processing document", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(processingDoc(), nil)
		f.chunks.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
		f.docs.On("MarkFailed", mock.Anything, "doc-1", "retries exhausted", mock.Anything).Return(nil)

		require.NoError(t, f.pipeline.MarkFailed(ctx, "doc-1", errors.New("retries exhausted")))
		f.assertExpectations(t)
	})

	t.Run("leaves terminal documents alone", func(t *testing.T) {
		f := newIngestionFixture(t, smallChunks())
		doc := processingDoc()
		doc.Status = domain.DocumentStatusFailed

		f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)

		require.NoError(t, f.pipeline.MarkFailed(ctx, "doc-1", errors.New("late")))
		assert.Equal(t, 0, f.tx.called)
	})
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
