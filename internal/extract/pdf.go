package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"code.sajari.com/docconv"
	"github.com/cloo-solutions/docqa/internal/domain"
)

const pdfContentType = "application/pdf"

var (
	pdfMagic        = []byte("%PDF-")
	pdfEncryptToken = []byte("/Encrypt")
	errNotPDF       = errors.New("missing %PDF- header")
)

// ConvertFunc matches docconv.Convert.
type ConvertFunc func(r io.Reader, mimeType string, readability bool) (*docconv.Response, error)

// PDFExtractor extracts text from PDF documents through docconv.
type PDFExtractor struct {
	convert ConvertFunc
}

// NewPDFExtractor creates a PDF extractor backed by docconv.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{convert: docconv.Convert}
}

// NewPDFExtractorWithConverter creates a PDF extractor with a custom converter.
func NewPDFExtractorWithConverter(convert ConvertFunc) *PDFExtractor {
	return &PDFExtractor{convert: convert}
}

func (e *PDFExtractor) Supports(contentType string) bool {
	return NormalizeContentType(contentType) == pdfContentType
}

func (e *PDFExtractor) ContentTypes() []string {
	return []string{pdfContentType}
}

// Extract returns the text layer of a PDF. A document without pages yields
// an empty string; encrypted documents are reported as unreadable.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return "", domain.ExtractionFailed(pdfContentType, errNotPDF)
	}
	if bytes.Contains(data, pdfEncryptToken) {
		return "", domain.UnreadableContent(pdfContentType, errors.New("document is encrypted"))
	}
	if err := ctx.Err(); err != nil {
		return "", domain.ExtractionFailed(pdfContentType, err)
	}

	res, err := e.convert(bytes.NewReader(data), pdfContentType, false)
	if err != nil {
		if looksEncrypted(err.Error()) {
			return "", domain.UnreadableContent(pdfContentType, err)
		}
		return "", domain.ExtractionFailed(pdfContentType, err)
	}
	if res == nil {
		return "", domain.ExtractionFailed(pdfContentType, errors.New("converter returned no result"))
	}
	if strings.HasPrefix(strings.ToLower(res.Meta["Encrypted"]), "yes") {
		return "", domain.UnreadableContent(pdfContentType, errors.New("document is encrypted"))
	}
	if res.Meta["Pages"] == "0" {
		return "", nil
	}

	return res.Body, nil
}

func looksEncrypted(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}
