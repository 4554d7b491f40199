package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of an upload is buffered in memory before the
// rest spills to temporary files.
const multipartMemory = 8 << 20

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Reprocess(ctx context.Context, id string) (*domain.Document, error)
	UpdateMetadata(ctx context.Context, id string, metadata domain.Metadata) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// JobNotifier is told when new ingestion work was queued.
type JobNotifier interface {
	Notify()
}

type DocumentHandler struct {
	svc      DocumentService
	notifier JobNotifier
}

// NewDocumentHandler creates a handler. notifier may be nil when no worker
// runs in this process.
func NewDocumentHandler(svc DocumentService, notifier JobNotifier) *DocumentHandler {
	return &DocumentHandler{svc: svc, notifier: notifier}
}

type DocumentResponse struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	ContentType   string          `json:"content_type"`
	SizeBytes     int64           `json:"size_bytes"`
	Status        string          `json:"status"`
	ChunkCount    int             `json:"chunk_count"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:            d.ID,
		Filename:      d.Filename,
		ContentType:   d.ContentType,
		SizeBytes:     d.SizeBytes,
		Status:        string(d.Status),
		ChunkCount:    d.ChunkCount,
		FailureReason: d.FailureReason,
		Metadata:      json.RawMessage(d.Metadata.OrEmpty()),
		CreatedAt:     d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Upload accepts a multipart form with a "file" part and an optional
// "metadata" field holding a JSON document.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.HandleError(w, err)
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var metadata domain.Metadata
	if raw := r.FormValue("metadata"); raw != "" {
		metadata = domain.Metadata(raw)
		if !metadata.Valid() {
			api.HandleError(w, domain.ErrInvalidMetadata)
			return
		}
	}

	contentType := r.FormValue("content_type")
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}

	doc, err := h.svc.Upload(r.Context(), service.UploadInput{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
		Metadata:    metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.notify()
	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	input := service.ListDocumentsInput{
		Cursor: r.URL.Query().Get("cursor"),
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		input.Limit = limit
	}

	result, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(result.Items))
	for _, d := range result.Items {
		items = append(items, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  result.Cursor,
		HasMore: result.HasMore,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

// UpdateMetadata replaces the document metadata with the JSON request body.
func (h *DocumentHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	doc, err := h.svc.UpdateMetadata(r.Context(), id, domain.Metadata(body))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Reprocess(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.notify()
	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) notify() {
	if h.notifier != nil {
		h.notifier.Notify()
	}
}
