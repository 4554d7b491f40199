package service

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_OrdersChunksBySimilarity(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{Chunk: domain.Chunk{Content: "low"}, Filename: "c.txt", Similarity: 0.2},
		{Chunk: domain.Chunk{Content: "high"}, Filename: "a.txt", Similarity: 0.9},
		{Chunk: domain.Chunk{Content: "mid"}, Filename: "b.txt", Similarity: 0.5},
	}

	prompt := BuildPrompt("q?", chunks, nil)

	high := strings.Index(prompt, "[1] a.txt")
	mid := strings.Index(prompt, "[2] b.txt")
	low := strings.Index(prompt, "[3] c.txt")
	assert.True(t, high >= 0 && high < mid && mid < low, prompt)
	assert.Equal(t, 0.2, chunks[0].Similarity, "input must not be reordered")
}

func TestBuildPrompt_Layout(t *testing.T) {
	history := []*domain.Message{
		{Role: domain.MessageRoleUser, Content: "first question"},
		{Role: domain.MessageRoleAssistant, Content: "first answer"},
	}
	chunks := []domain.ScoredChunk{
		{Chunk: domain.Chunk{DocumentID: "doc-1", ChunkIndex: 2, Content: "  context body \n"}, Similarity: 0.8},
	}

	prompt := BuildPrompt(" second question ", chunks, history)

	ctxAt := strings.Index(prompt, "Context:")
	histAt := strings.Index(prompt, "Conversation so far:")
	qAt := strings.Index(prompt, "Question: second question")
	assert.True(t, ctxAt >= 0 && ctxAt < histAt && histAt < qAt, prompt)
	assert.Contains(t, prompt, "[1] doc-1 (chunk 2)\ncontext body\n")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt := BuildPrompt("anything?", nil, nil)

	assert.Contains(t, prompt, "(no relevant documents found)")
	assert.NotContains(t, prompt, "Conversation so far")
}
