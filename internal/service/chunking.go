package service

import (
	"strings"
	"unicode"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// ChunkConfig controls how extracted text is split before embedding.
type ChunkConfig struct {
	// Size is the maximum segment length in characters.
	Size int
	// Overlap is the number of characters a segment repeats from the end of
	// the previous one.
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1200,
		Overlap: 200,
	}
}

// ValidChunkParams reports whether size and overlap are usable together.
func ValidChunkParams(size, overlap int) bool {
	return size > 0 && overlap > 0 && overlap < size
}

// Chunker splits text into overlapping, boundary-aware segments.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker validates cfg and returns a Chunker for it.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if !ValidChunkParams(cfg.Size, cfg.Overlap) {
		return nil, domain.ErrInvalidChunkParameters
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the parameters the chunker was built with.
func (c *Chunker) Config() ChunkConfig {
	return c.cfg
}

// Split returns the segments of text in document order.
func (c *Chunker) Split(text string) []string {
	return splitText(text, c.cfg.Size, c.cfg.Overlap)
}

// SplitText validates the parameters and splits text.
func SplitText(text string, size, overlap int) ([]string, error) {
	if !ValidChunkParams(size, overlap) {
		return nil, domain.ErrInvalidChunkParameters
	}
	return splitText(text, size, overlap), nil
}

func splitText(text string, size, overlap int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return []string{}
	}
	runes := []rune(clean)
	if len(runes) <= size {
		return []string{clean}
	}

	lookback := size / 4
	if lookback < 1 {
		lookback = 1
	}

	chunks := make([]string, 0, len(runes)/(size-overlap)+1)
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		cut := end
		if end < len(runes) {
			// A boundary must leave room for the overlap so the next
			// segment still starts after this one.
			floor := end - lookback
			if minCut := start + overlap + 1; floor < minCut {
				floor = minCut
			}
			if b := lastBoundary(runes, floor, end); b > 0 {
				cut = b
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if cut >= len(runes) {
			break
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}

// lastBoundary returns the largest cut position in [floor, end] that falls
// right after a paragraph break or a sentence terminator, or 0 when none exists.
func lastBoundary(runes []rune, floor, end int) int {
	for i := end; i >= floor && i >= 2; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
		if isSentenceEnd(runes[i-1]) && (i == len(runes) || unicode.IsSpace(runes[i])) {
			return i
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
