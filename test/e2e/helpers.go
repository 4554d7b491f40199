//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const stubDimension = 32

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	Worker     *jobs.Worker
	Embedder   *stubEmbedder
	Generator  *stubGenerator
	HTTPClient *http.Client

	cancel context.CancelFunc
}

// SetupE2EEnv starts Postgres and RustFS, wires the full stack with stub
// providers and serves it over HTTP.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx, cancel := context.WithCancel(context.Background())

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "e2e-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	embedder := &stubEmbedder{}
	generator := &stubGenerator{}

	chunkRepo := repository.NewChunkRepository(pool)
	if err := chunkRepo.EnsureDimension(ctx, stubDimension); err != nil {
		t.Fatalf("failed to resize vector column: %v", err)
	}

	docRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	extractors := extract.NewDefaultRegistry()

	documents := service.NewDocumentService(docRepo, jobRepo, s3Client, txRunner, extractors)
	pipeline, err := service.NewIngestionPipeline(docRepo, s3Client, extractors, embedder, txRunner, service.IngestionConfig{
		Chunk: service.ChunkConfig{Size: 200, Overlap: 40},
	})
	if err != nil {
		t.Fatalf("failed to create ingestion pipeline: %v", err)
	}
	query := service.NewQueryPipeline(
		repository.NewConversationRepository(pool),
		repository.NewMessageRepository(pool),
		chunkRepo,
		embedder,
		generator,
		service.QueryConfig{TopK: 3, HistoryMessages: 4},
	)

	processor := jobs.NewIngestionJobProcessor(jobRepo, pipeline, jobs.IngestionProcessorConfig{MaxRetries: 2})
	worker := jobs.NewWorker(processor, 200*time.Millisecond)
	go worker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documents, worker),
		ChatHandler:     handlers.NewChatHandler(query),
		HealthHandler:   handlers.NewHealthHandler(embedder, generator),
		MaxBodyBytes:    1 << 20,
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		Server:     httptest.NewServer(router),
		Worker:     worker,
		Embedder:   embedder,
		Generator:  generator,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		cancel:     cancel,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Worker != nil {
		e.Worker.Stop()
	}
	e.cancel()
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(context.Background())
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(context.Background())
	}
}

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Get(path string) *APIResponse {
	return e.do(http.MethodGet, path, "", nil)
}

func (e *E2ETestEnv) PostJSON(path string, body any) *APIResponse {
	data, err := json.Marshal(body)
	if err != nil {
		e.T.Fatalf("failed to marshal body: %v", err)
	}
	return e.do(http.MethodPost, path, "application/json", bytes.NewReader(data))
}

func (e *E2ETestEnv) Post(path string) *APIResponse {
	return e.do(http.MethodPost, path, "", nil)
}

func (e *E2ETestEnv) Patch(path, body string) *APIResponse {
	return e.do(http.MethodPatch, path, "application/json", strings.NewReader(body))
}

func (e *E2ETestEnv) Delete(path string) *APIResponse {
	return e.do(http.MethodDelete, path, "", nil)
}

// Upload posts a file as multipart form data.
func (e *E2ETestEnv) Upload(filename, content, metadata string) *APIResponse {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		e.T.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		e.T.Fatalf("failed to write form file: %v", err)
	}
	if metadata != "" {
		if err := w.WriteField("metadata", metadata); err != nil {
			e.T.Fatalf("failed to write metadata: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		e.T.Fatalf("failed to close form: %v", err)
	}
	return e.do(http.MethodPost, "/documents", w.FormDataContentType(), &body)
}

func (e *E2ETestEnv) do(method, path, contentType string, body io.Reader) *APIResponse {
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, body)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, apiResp); err != nil {
			e.T.Fatalf("%s %s: invalid JSON response %q: %v", method, path, raw, err)
		}
	}
	return apiResp
}

type documentView struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	ContentType   string          `json:"content_type"`
	Status        string          `json:"status"`
	ChunkCount    int             `json:"chunk_count"`
	FailureReason string          `json:"failure_reason"`
	Metadata      json.RawMessage `json:"metadata"`
}

// WaitForStatus polls a document until it reaches a terminal status.
func (e *E2ETestEnv) WaitForStatus(id string, timeout time.Duration) documentView {
	deadline := time.Now().Add(timeout)
	var doc documentView
	for time.Now().Before(deadline) {
		resp := e.Get("/documents/" + id)
		if resp.Status != http.StatusOK {
			e.T.Fatalf("get document %s: HTTP %d %s", id, resp.Status, resp.Error)
		}
		if err := json.Unmarshal(resp.Data, &doc); err != nil {
			e.T.Fatalf("failed to decode document: %v", err)
		}
		if doc.Status != "PROCESSING" {
			return doc
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %s still %s after %v", id, doc.Status, timeout)
	return doc
}

// stubEmbedder hashes words into a fixed number of buckets, so texts sharing
// words end up close to each other.
type stubEmbedder struct {
	fail atomic.Bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.fail.Load() {
		return nil, errors.New("stub embedder unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text)
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return stubDimension }

func (s *stubEmbedder) Healthy(ctx context.Context) bool { return !s.fail.Load() }

func hashVector(text string) []float32 {
	vec := make([]float32, stubDimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%stubDimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// stubGenerator echoes the size of the prompt it was given.
type stubGenerator struct {
	fail atomic.Bool
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if s.fail.Load() {
		return "", errors.New("stub generator unavailable")
	}
	return fmt.Sprintf("stub answer from a %d character prompt", len(prompt)), nil
}

func (s *stubGenerator) GenerateWithTemperature(ctx context.Context, prompt string, temperature float32) (string, error) {
	return s.Generate(ctx, prompt)
}

func (s *stubGenerator) Healthy(ctx context.Context) bool { return !s.fail.Load() }
