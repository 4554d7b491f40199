package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	Ask(ctx context.Context, input service.AskInput) (*service.AskOutput, error)
	History(ctx context.Context, sessionID string) (*service.HistoryOutput, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

type SourceResponse struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type ChatResponse struct {
	ConversationID string           `json:"conversation_id"`
	MessageID      string           `json:"message_id"`
	Answer         string           `json:"answer"`
	Sources        []SourceResponse `json:"sources"`
}

type MessageResponse struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Sources   []SourceResponse `json:"sources,omitempty"`
	CreatedAt string           `json:"created_at"`
}

type HistoryResponse struct {
	ConversationID string            `json:"conversation_id"`
	SessionID      string            `json:"session_id"`
	Title          string            `json:"title"`
	Messages       []MessageResponse `json:"messages"`
}

func sourcesToResponse(sources []domain.MessageSource) []SourceResponse {
	out := make([]SourceResponse, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourceResponse(s))
	}
	return out
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.TopK < 0 {
		api.Error(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}
	middleware.SetSessionID(r.Context(), req.SessionID)

	out, err := h.svc.Ask(r.Context(), service.AskInput{
		SessionID:   req.SessionID,
		Message:     req.Message,
		Temperature: req.Temperature,
		TopK:        req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{
		ConversationID: out.ConversationID,
		MessageID:      out.MessageID,
		Answer:         out.Answer,
		Sources:        sourcesToResponse(out.Sources),
	})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session id is required")
		return
	}
	middleware.SetSessionID(r.Context(), sessionID)

	out, err := h.svc.History(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	messages := make([]MessageResponse, 0, len(out.Messages))
	for _, m := range out.Messages {
		resp := MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if len(m.Sources) > 0 {
			resp.Sources = sourcesToResponse(m.Sources)
		}
		messages = append(messages, resp)
	}

	api.Success(w, http.StatusOK, HistoryResponse{
		ConversationID: out.Conversation.ID,
		SessionID:      out.Conversation.SessionID,
		Title:          out.Conversation.Title,
		Messages:       messages,
	})
}
