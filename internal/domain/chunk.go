package domain

import "time"

// Chunk is an indexed text segment of a document with its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   Metadata
	CreatedAt  time.Time
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	Chunk
	Filename   string
	Similarity float64
}
