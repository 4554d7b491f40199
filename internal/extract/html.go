package extract

import (
	"bytes"
	"context"
	"errors"

	"code.sajari.com/docconv"
	"github.com/cloo-solutions/docqa/internal/domain"
)

// HTMLExtractor extracts visible text from HTML pages through docconv.
type HTMLExtractor struct {
	types          mediaTypes
	useReadability bool
	convert        ConvertFunc
}

// NewHTMLExtractor creates an HTML extractor. With useReadability docconv
// keeps only the main article content.
func NewHTMLExtractor(useReadability bool) *HTMLExtractor {
	return &HTMLExtractor{
		types:          mediaTypes{"text/html", "application/xhtml+xml"},
		useReadability: useReadability,
		convert:        docconv.Convert,
	}
}

func (e *HTMLExtractor) Supports(contentType string) bool {
	return e.types.supports(contentType)
}

func (e *HTMLExtractor) ContentTypes() []string {
	return append([]string(nil), e.types...)
}

func (e *HTMLExtractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	return convertDocument(ctx, e.convert, data, contentType, "text/html", e.useReadability)
}

// convertDocument runs a docconv conversion and maps its failures to
// ExtractionFailed. docconvType is the MIME type docconv dispatches on.
func convertDocument(ctx context.Context, convert ConvertFunc, data []byte, contentType, docconvType string, readability bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.ExtractionFailed(contentType, err)
	}

	res, err := convert(bytes.NewReader(data), docconvType, readability)
	if err != nil {
		return "", domain.ExtractionFailed(contentType, err)
	}
	if res == nil {
		return "", domain.ExtractionFailed(contentType, errors.New("converter returned no result"))
	}
	return res.Body, nil
}
