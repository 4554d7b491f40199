// Package extract converts raw document bytes into plain text, one variant
// per family of media types.
package extract

import (
	"context"
	"mime"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Extractor converts bytes of a supported media type into plain text.
type Extractor interface {
	Supports(contentType string) bool
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

// Registry dispatches to the first extractor supporting a content type.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry consulting extractors in order.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// NewDefaultRegistry returns a registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		NewPDFExtractor(),
		NewPlainTextExtractor(),
		NewMarkdownExtractor(),
		NewHTMLExtractor(false),
		NewOfficeExtractor(),
	)
}

// Supports reports whether any registered extractor handles contentType.
func (r *Registry) Supports(contentType string) bool {
	return r.find(NormalizeContentType(contentType)) != nil
}

// Extract returns the trimmed text of data. Unsupported types fail with
// ExtractionFailed.
func (r *Registry) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	ct := NormalizeContentType(contentType)
	ex := r.find(ct)
	if ex == nil {
		return "", domain.ExtractionFailed(contentType, domain.ErrUnsupportedContentType)
	}

	text, err := ex.Extract(ctx, data, ct)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ContentTypes lists the media types accepted by at least one extractor.
func (r *Registry) ContentTypes() []string {
	var out []string
	for _, ex := range r.extractors {
		if lister, ok := ex.(interface{ ContentTypes() []string }); ok {
			out = append(out, lister.ContentTypes()...)
		}
	}
	return out
}

func (r *Registry) find(contentType string) Extractor {
	for _, ex := range r.extractors {
		if ex.Supports(contentType) {
			return ex
		}
	}
	return nil
}

// NormalizeContentType lowercases a media type and drops its parameters.
func NormalizeContentType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// ContentTypeForFilename guesses a supported media type from a file extension.
func ContentTypeForFilename(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return "text/markdown"
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".text"), strings.HasSuffix(lower, ".log"):
		return "text/plain"
	case strings.HasSuffix(lower, ".csv"):
		return "text/csv"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return "text/html"
	case strings.HasSuffix(lower, ".docx"):
		return docxContentType
	case strings.HasSuffix(lower, ".odt"):
		return odtContentType
	}
	return "application/octet-stream"
}

type mediaTypes []string

func (m mediaTypes) supports(contentType string) bool {
	ct := NormalizeContentType(contentType)
	for _, t := range m {
		if t == ct {
			return true
		}
	}
	return false
}
