package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message.
// Sentinel errors declared below can therefore be matched with errors.Is even
// after a cause has been attached.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Pipeline error codes
const (
	ErrCodeUnreadableContent      = "UNREADABLE_CONTENT"
	ErrCodeExtractionFailed       = "EXTRACTION_FAILED"
	ErrCodeEmbeddingFailed        = "EMBEDDING_FAILED"
	ErrCodeGenerationFailed       = "GENERATION_FAILED"
	ErrCodeInvalidChunkParameters = "INVALID_CHUNK_PARAMETERS"
)

// Validation errors
var (
	ErrInvalidDocumentStatus     = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidMessageRole        = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidIngestionJobStatus = NewDomainError(ErrCodeValidation, "invalid ingestion job status")
	ErrInvalidMetadata           = NewDomainError(ErrCodeValidation, "metadata must be valid JSON")
	ErrInvalidTemperature        = NewDomainError(ErrCodeValidation, "temperature must be between 0 and 2")
	ErrUnsupportedContentType    = NewDomainError(ErrCodeValidation, "unsupported content type")
	ErrEmptyContent              = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChunkParameters    = NewDomainError(ErrCodeInvalidChunkParameters, "chunk size and overlap must be positive and overlap must be smaller than chunk size")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrBlobNotFound         = NewDomainError(ErrCodeNotFound, "document content not found")
)

// Operation errors
var (
	ErrDocumentBusy         = NewDomainError(ErrCodeInvalidOperation, "document is already queued for processing")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// UnreadableContent reports content that is present but cannot be accessed,
// such as an encrypted PDF.
func UnreadableContent(contentType string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeUnreadableContent,
		fmt.Sprintf("%s content is not readable", contentType), err)
}

// ExtractionFailed reports content of the declared type that could not be decoded.
func ExtractionFailed(contentType string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExtractionFailed,
		fmt.Sprintf("failed to extract text from %s", contentType), err)
}

// EmbeddingFailed wraps an embedding backend error or timeout.
func EmbeddingFailed(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingFailed, "embedding request failed", err)
}

// GenerationFailed wraps a generation backend error or timeout.
func GenerationFailed(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationFailed, "generation request failed", err)
}
