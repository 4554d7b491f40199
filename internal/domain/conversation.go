package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageRole identifies the author of a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

const maxTitleRunes = 80

// Conversation groups the messages exchanged under one session id
type Conversation struct {
	ID        string
	SessionID string
	Title     string
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageSource references a chunk that grounded an answer
type MessageSource struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// Message is one immutable entry in a conversation
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Sources        []MessageSource
	Metadata       Metadata
	CreatedAt      time.Time
}

// NewConversation creates a conversation titled after the opening question.
func NewConversation(id, sessionID, firstMessage string, now time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		SessionID: sessionID,
		Title:     ConversationTitle(firstMessage),
		Metadata:  EmptyMetadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConversationTitle derives a short single-line title from text.
func ConversationTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "..."
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.ID == "" || m.ConversationID == "" {
		return ErrMissingRequiredField
	}
	if !IsValidMessageRole(m.Role) {
		return ErrInvalidMessageRole
	}
	if m.Role == MessageRoleUser && len(m.Sources) > 0 {
		return NewDomainError(ErrCodeValidation, "only assistant messages carry sources")
	}
	if !m.Metadata.Valid() {
		return ErrInvalidMetadata
	}
	return nil
}

// IsValidMessageRole checks if a MessageRole is valid
func IsValidMessageRole(r MessageRole) bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}
