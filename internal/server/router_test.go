package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) Reprocess(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) UpdateMetadata(ctx context.Context, id string, metadata domain.Metadata) (*domain.Document, error) {
	args := m.Called(ctx, id, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Ask(ctx context.Context, input service.AskInput) (*service.AskOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskOutput), args.Error(1)
}

func (m *MockChatService) History(ctx context.Context, sessionID string) (*service.HistoryOutput, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HistoryOutput), args.Error(1)
}

type healthy bool

func (h healthy) Healthy(ctx context.Context) bool { return bool(h) }

func newTestRouter(docs *MockDocumentService, chat *MockChatService, cfg RouterConfig) http.Handler {
	cfg.DocumentHandler = handlers.NewDocumentHandler(docs, nil)
	cfg.ChatHandler = handlers.NewChatHandler(chat)
	cfg.HealthHandler = handlers.NewHealthHandler(healthy(true), healthy(false))
	return NewRouter(cfg)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockChatService), RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/providers", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"generation":false`)
}

func TestRouter_DocumentRoutes(t *testing.T) {
	docs := new(MockDocumentService)
	router := newTestRouter(docs, new(MockChatService), RouterConfig{})

	doc := domain.NewDocument("doc-1", "a.txt", "text/plain", 3, domain.EmptyMetadata, time.Now().UTC())
	docs.On("Get", mock.Anything, "doc-1").Return(doc, nil)
	docs.On("List", mock.Anything, service.ListDocumentsInput{}).Return(&service.ListDocumentsOutput{}, nil)
	docs.On("Reprocess", mock.Anything, "doc-1").Return(doc, nil)
	docs.On("UpdateMetadata", mock.Anything, "doc-1", domain.Metadata(`{"a":1}`)).Return(doc, nil)
	docs.On("Delete", mock.Anything, "doc-1").Return(nil)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/documents", "", http.StatusOK},
		{http.MethodGet, "/documents/doc-1", "", http.StatusOK},
		{http.MethodPatch, "/documents/doc-1/metadata", `{"a":1}`, http.StatusOK},
		{http.MethodPost, "/documents/doc-1/reprocess", "", http.StatusAccepted},
		{http.MethodDelete, "/documents/doc-1", "", http.StatusNoContent},
		{http.MethodPut, "/documents/doc-1", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_ChatRoutes(t *testing.T) {
	chat := new(MockChatService)
	router := newTestRouter(new(MockDocumentService), chat, RouterConfig{})

	chat.On("Ask", mock.Anything, service.AskInput{SessionID: "s-1", Message: "hi"}).
		Return(&service.AskOutput{ConversationID: "c", MessageID: "m", Answer: "hello"}, nil)
	chat.On("History", mock.Anything, "s-1").Return(nil, domain.ErrConversationNotFound)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"s-1","message":"hi"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"answer":"hello"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/s-1/messages", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockChatService), RouterConfig{MaxBodyBytes: 16})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(make([]byte, 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_CORS(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockChatService), RouterConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
