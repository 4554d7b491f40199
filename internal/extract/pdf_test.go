package extract

import (
	"context"
	"errors"
	"io"
	"testing"

	"code.sajari.com/docconv"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minimalPDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n%%EOF")

func TestPDFExtractor_Supports(t *testing.T) {
	ex := NewPDFExtractor()
	assert.True(t, ex.Supports("application/pdf"))
	assert.True(t, ex.Supports("Application/PDF; name=x.pdf"))
	assert.False(t, ex.Supports("text/plain"))
}

func TestPDFExtractor_ReturnsBody(t *testing.T) {
	ex := NewPDFExtractorWithConverter(stubConverter("Page one text", map[string]string{"Pages": "1"}, nil))

	text, err := ex.Extract(context.Background(), minimalPDF, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Page one text", text)
}

func TestPDFExtractor_ZeroPages(t *testing.T) {
	ex := NewPDFExtractorWithConverter(stubConverter("\f", map[string]string{"Pages": "0"}, nil))

	text, err := ex.Extract(context.Background(), minimalPDF, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestPDFExtractor_NotAPDF(t *testing.T) {
	called := false
	ex := NewPDFExtractorWithConverter(func(r io.Reader, mimeType string, readability bool) (*docconv.Response, error) {
		called = true
		return &docconv.Response{}, nil
	})

	_, err := ex.Extract(context.Background(), []byte("plain words"), "application/pdf")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeExtractionFailed))
	assert.False(t, called)
}

func TestPDFExtractor_EncryptDictionary(t *testing.T) {
	data := []byte("%PDF-1.6\ntrailer << /Root 1 0 R /Encrypt 5 0 R >>\n%%EOF")
	ex := NewPDFExtractorWithConverter(stubConverter("should not be read", nil, nil))

	_, err := ex.Extract(context.Background(), data, "application/pdf")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeUnreadableContent))
}

func TestPDFExtractor_EncryptedMeta(t *testing.T) {
	ex := NewPDFExtractorWithConverter(stubConverter("", map[string]string{"Encrypted": "yes (print:no copy:no)"}, nil))

	_, err := ex.Extract(context.Background(), minimalPDF, "application/pdf")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeUnreadableContent))
}

func TestPDFExtractor_PasswordError(t *testing.T) {
	ex := NewPDFExtractorWithConverter(stubConverter("", nil, errors.New("Command Line Error: Incorrect password")))

	_, err := ex.Extract(context.Background(), minimalPDF, "application/pdf")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeUnreadableContent))
}

func TestPDFExtractor_DecodeFailure(t *testing.T) {
	ex := NewPDFExtractorWithConverter(stubConverter("", nil, errors.New("syntax error: couldn't find trailer")))

	_, err := ex.Extract(context.Background(), minimalPDF, "application/pdf")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeExtractionFailed, de.Code)
	assert.Contains(t, de.Message, "application/pdf")
	assert.EqualError(t, de.Err, "syntax error: couldn't find trailer")
}
