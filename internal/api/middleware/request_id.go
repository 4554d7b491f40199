package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	fieldsKey    contextKey = "log_fields"

	maxRequestIDLength = 128
)

// RequestID injects a request ID into context and response headers. Client
// supplied IDs are kept when they are short printable ASCII.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// requestFields collects values learned while a handler runs, so outer
// middleware can report them once the handler returns.
type requestFields struct {
	sessionID string
}

func withRequestFields(ctx context.Context) (context.Context, *requestFields) {
	if f, ok := ctx.Value(fieldsKey).(*requestFields); ok {
		return ctx, f
	}
	f := &requestFields{}
	return context.WithValue(ctx, fieldsKey, f), f
}

// SetSessionID records the chat session a request belongs to.
func SetSessionID(ctx context.Context, sessionID string) {
	if f, ok := ctx.Value(fieldsKey).(*requestFields); ok {
		f.sessionID = sessionID
	}
}

// GetSessionID returns the session recorded with SetSessionID.
func GetSessionID(ctx context.Context) string {
	if f, ok := ctx.Value(fieldsKey).(*requestFields); ok {
		return f.sessionID
	}
	return ""
}
