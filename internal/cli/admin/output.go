package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/spf13/cobra"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", outputText, "Output format (text or json)")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case outputText, outputJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text or json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type documentView struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	ContentType   string          `json:"content_type"`
	SizeBytes     int64           `json:"size_bytes"`
	Status        string          `json:"status"`
	ChunkCount    int             `json:"chunk_count"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Metadata      domain.Metadata `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toDocumentView(d *domain.Document) documentView {
	return documentView{
		ID:            d.ID,
		Filename:      d.Filename,
		ContentType:   d.ContentType,
		SizeBytes:     d.SizeBytes,
		Status:        string(d.Status),
		ChunkCount:    d.ChunkCount,
		FailureReason: d.FailureReason,
		Metadata:      d.Metadata,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func printDocument(w io.Writer, d *domain.Document) {
	fmt.Fprintf(w, "ID:       %s\n", d.ID)
	fmt.Fprintf(w, "File:     %s (%s, %d bytes)\n", d.Filename, d.ContentType, d.SizeBytes)
	fmt.Fprintf(w, "Status:   %s\n", d.Status)
	fmt.Fprintf(w, "Chunks:   %d\n", d.ChunkCount)
	if d.FailureReason != "" {
		fmt.Fprintf(w, "Failure:  %s\n", d.FailureReason)
	}
	fmt.Fprintf(w, "Created:  %s\n", d.CreatedAt.Format(time.RFC3339))
}

type jobView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Retries     int32      `json:"retries"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

type documentStatusView struct {
	documentView
	Job *jobView `json:"job,omitempty"`
}

func toJobView(j *domain.IngestionJob) *jobView {
	return &jobView{
		ID:          j.ID,
		Status:      string(j.Status),
		Retries:     j.Retries,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		ProcessedAt: j.ProcessedAt,
	}
}

func printJob(w io.Writer, j *domain.IngestionJob) {
	fmt.Fprintf(w, "Job:      %s %s (retries %d)\n", j.ID, j.Status, j.Retries)
	if j.Error != "" {
		fmt.Fprintf(w, "Job error: %s\n", j.Error)
	}
}
