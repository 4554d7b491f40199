package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/spf13/cobra"
)

func DocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc", "documents"},
		Short:   "Manage documents",
		Long:    "Upload, inspect, reprocess and delete documents",
	}

	cmd.AddCommand(documentUploadCmd())
	cmd.AddCommand(documentListCmd())
	cmd.AddCommand(documentStatusCmd())
	cmd.AddCommand(documentReprocessCmd())
	cmd.AddCommand(documentDeleteCmd())

	return cmd
}

// withDocuments runs fn against an app without providers.
func withDocuments(ctx context.Context, fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func documentUploadCmd() *cobra.Command {
	var (
		contentType string
		metadata    string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for ingestion",
		Long:  "Store a file and queue it for ingestion. A running server worker picks it up.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			return withDocuments(cmd.Context(), func(a *app) error {
				doc, err := a.documents.Upload(cmd.Context(), service.UploadInput{
					Filename:    filepath.Base(args[0]),
					ContentType: contentType,
					Data:        data,
					Metadata:    domain.Metadata(metadata),
				})
				if err != nil {
					return fmt.Errorf("failed to upload document: %w", err)
				}

				if format == outputJSON {
					return writeJSON(cmd.OutOrStdout(), toDocumentView(doc))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document queued: %s (%s)\n", doc.Filename, doc.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Media type (default: derived from the file extension)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON metadata to attach to the document")
	addOutputFlag(cmd)

	return cmd
}

func documentListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			return withDocuments(cmd.Context(), func(a *app) error {
				result, err := a.documents.List(cmd.Context(), service.ListDocumentsInput{Cursor: cursor, Limit: limit})
				if err != nil {
					return fmt.Errorf("failed to list documents: %w", err)
				}

				out := cmd.OutOrStdout()
				if format == outputJSON {
					items := make([]documentView, len(result.Items))
					for i, d := range result.Items {
						items[i] = toDocumentView(d)
					}
					return writeJSON(out, map[string]any{
						"items":    items,
						"cursor":   result.Cursor,
						"has_more": result.HasMore,
					})
				}

				if len(result.Items) == 0 {
					fmt.Fprintln(out, "No documents found.")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tCHUNKS\tCREATED")
				for _, d := range result.Items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.Status, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if result.HasMore {
					fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", result.Cursor)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	addOutputFlag(cmd)

	return cmd
}

func documentStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show a document and its ingestion status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			return withDocuments(cmd.Context(), func(a *app) error {
				doc, err := a.documents.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				job, err := a.ingestionJobs.LatestForDocument(cmd.Context(), doc.ID)
				if err != nil && !errors.Is(err, repository.ErrIngestionJobNotFound) {
					return err
				}

				if format == outputJSON {
					view := documentStatusView{documentView: toDocumentView(doc)}
					if job != nil {
						view.Job = toJobView(job)
					}
					return writeJSON(cmd.OutOrStdout(), view)
				}
				printDocument(cmd.OutOrStdout(), doc)
				if job != nil {
					printJob(cmd.OutOrStdout(), job)
				}
				return nil
			})
		},
	}

	addOutputFlag(cmd)
	return cmd
}

func documentReprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess <id>",
		Short: "Queue a document for another ingestion run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			return withDocuments(cmd.Context(), func(a *app) error {
				doc, err := a.documents.Reprocess(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to reprocess document: %w", err)
				}
				if format == outputJSON {
					return writeJSON(cmd.OutOrStdout(), toDocumentView(doc))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document requeued: %s\n", doc.ID)
				return nil
			})
		},
	}

	addOutputFlag(cmd)
	return cmd
}

func documentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document with its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDocuments(cmd.Context(), func(a *app) error {
				if err := a.documents.Delete(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to delete document: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document deleted: %s\n", args[0])
				return nil
			})
		},
	}
}
