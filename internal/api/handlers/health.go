package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
)

const providerCheckTimeout = 15 * time.Second

// HealthChecker reports whether an external provider answers.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

type HealthHandler struct {
	embedder  HealthChecker
	generator HealthChecker
}

func NewHealthHandler(embedder, generator HealthChecker) *HealthHandler {
	return &HealthHandler{embedder: embedder, generator: generator}
}

type ProviderHealthResponse struct {
	Embedding  bool `json:"embedding"`
	Generation bool `json:"generation"`
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Providers checks both providers concurrently and answers 503 unless both
// are healthy.
func (h *HealthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), providerCheckTimeout)
	defer cancel()

	embedding := make(chan bool, 1)
	go func() { embedding <- h.embedder != nil && h.embedder.Healthy(ctx) }()
	generation := h.generator != nil && h.generator.Healthy(ctx)

	resp := ProviderHealthResponse{Embedding: <-embedding, Generation: generation}

	status := http.StatusOK
	if !resp.Embedding || !resp.Generation {
		status = http.StatusServiceUnavailable
	}
	api.JSON(w, status, api.SuccessResponse{Data: resp})
}
