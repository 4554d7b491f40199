package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticHealth bool

func (s staticHealth) Healthy(ctx context.Context) bool { return bool(s) }

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(staticHealth(false), staticHealth(false))

	w := httptest.NewRecorder()
	handler.Live(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealthHandler_Providers(t *testing.T) {
	tests := []struct {
		name       string
		embedder   HealthChecker
		generator  HealthChecker
		wantStatus int
		want       ProviderHealthResponse
	}{
		{"both healthy", staticHealth(true), staticHealth(true), http.StatusOK, ProviderHealthResponse{true, true}},
		{"embedding down", staticHealth(false), staticHealth(true), http.StatusServiceUnavailable, ProviderHealthResponse{false, true}},
		{"generation down", staticHealth(true), staticHealth(false), http.StatusServiceUnavailable, ProviderHealthResponse{true, false}},
		{"not configured", nil, nil, http.StatusServiceUnavailable, ProviderHealthResponse{false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.embedder, tt.generator)

			w := httptest.NewRecorder()
			handler.Providers(w, httptest.NewRequest(http.MethodGet, "/health/providers", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ProviderHealthResponse
			decodeData(t, w, &resp)
			assert.Equal(t, tt.want, resp)
		})
	}
}
