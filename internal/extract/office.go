package extract

import (
	"context"

	"code.sajari.com/docconv"
)

const (
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	odtContentType  = "application/vnd.oasis.opendocument.text"
)

// OfficeExtractor extracts text from DOCX and ODT documents through docconv.
type OfficeExtractor struct {
	types   mediaTypes
	convert ConvertFunc
}

func NewOfficeExtractor() *OfficeExtractor {
	return &OfficeExtractor{
		types:   mediaTypes{docxContentType, odtContentType},
		convert: docconv.Convert,
	}
}

func (e *OfficeExtractor) Supports(contentType string) bool {
	return e.types.supports(contentType)
}

func (e *OfficeExtractor) ContentTypes() []string {
	return append([]string(nil), e.types...)
}

func (e *OfficeExtractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	ct := NormalizeContentType(contentType)
	return convertDocument(ctx, e.convert, data, ct, ct, false)
}
