package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const promptInstructions = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say that you cannot find it in the documents."

// BuildPrompt assembles the generation prompt: instructions, retrieved
// chunks by descending similarity, prior turns in order, then the question.
func BuildPrompt(question string, chunks []domain.ScoredChunk, history []*domain.Message) string {
	ordered := make([]domain.ScoredChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Similarity > ordered[j].Similarity
	})

	var sb strings.Builder
	sb.WriteString(promptInstructions)
	sb.WriteString("\n\nContext:\n")
	if len(ordered) == 0 {
		sb.WriteString("(no relevant documents found)\n")
	}
	for i, c := range ordered {
		label := c.Filename
		if label == "" {
			label = c.DocumentID
		}
		fmt.Fprintf(&sb, "[%d] %s (chunk %d)\n%s\n\n", i+1, label, c.ChunkIndex, strings.TrimSpace(c.Content))
	}

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", speaker(m.Role), strings.TrimSpace(m.Content))
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

func speaker(role domain.MessageRole) string {
	if role == domain.MessageRoleAssistant {
		return "Assistant"
	}
	return "User"
}
