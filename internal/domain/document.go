package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentStatus represents the ingestion lifecycle state of a document
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "PROCESSING"
	DocumentStatusCompleted  DocumentStatus = "COMPLETED"
	DocumentStatusFailed     DocumentStatus = "FAILED"
)

// IsTerminal reports whether the pipeline has finished with the document.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// Document is an uploaded file and its ingestion state
type Document struct {
	ID            string
	Filename      string
	ContentType   string
	SizeBytes     int64
	Status        DocumentStatus
	Metadata      Metadata
	ChunkCount    int
	StorageKey    string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewDocument creates a Document in the PROCESSING state
func NewDocument(id, filename, contentType string, sizeBytes int64, metadata Metadata, now time.Time) *Document {
	return &Document{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		Status:      DocumentStatusProcessing,
		Metadata:    metadata,
		StorageKey:  DocumentStorageKey(id),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DocumentStorageKey is the blob key holding a document's raw bytes.
func DocumentStorageKey(documentID string) string {
	return "documents/" + documentID
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return NewDomainError(ErrCodeValidation, "document ID is required")
	}
	if strings.TrimSpace(d.Filename) == "" {
		return NewDomainError(ErrCodeValidation, "filename is required")
	}
	if d.ContentType == "" {
		return NewDomainError(ErrCodeValidation, "content type is required")
	}
	if d.SizeBytes < 0 {
		return NewDomainError(ErrCodeValidation, "size cannot be negative")
	}
	if !IsValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentStatus
	}
	if !d.Metadata.Valid() {
		return ErrInvalidMetadata
	}
	return nil
}

// IsValidDocumentStatus checks if a DocumentStatus is valid
func IsValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}
