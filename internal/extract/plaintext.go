package extract

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"github.com/cloo-solutions/docqa/internal/domain"
)

var (
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
	errInvalidUTF8 = errors.New("content is not valid UTF-8")
)

// PlainTextExtractor passes UTF-8 text through unchanged apart from a leading BOM.
type PlainTextExtractor struct {
	types mediaTypes
}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{types: mediaTypes{"text/plain", "text/csv"}}
}

func (e *PlainTextExtractor) Supports(contentType string) bool {
	return e.types.supports(contentType)
}

func (e *PlainTextExtractor) ContentTypes() []string {
	return append([]string(nil), e.types...)
}

func (e *PlainTextExtractor) Extract(_ context.Context, data []byte, contentType string) (string, error) {
	return decodeUTF8(data, contentType)
}

func decodeUTF8(data []byte, contentType string) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", domain.ExtractionFailed(contentType, errInvalidUTF8)
	}
	return string(data), nil
}
