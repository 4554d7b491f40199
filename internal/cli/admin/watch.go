package admin

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/watcher"
	"github.com/spf13/cobra"
)

func WatchCmd() *cobra.Command {
	var (
		extensions []string
		noWorker   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload files dropped into a directory",
		Long: `Watch a directory and upload every created or modified file.

Unless --no-worker is set, the ingestion worker runs in this process so
uploaded files are processed without a running server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("failed to open directory: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a, err := newApp(ctx, cfg, appOptions{providers: !noWorker})
			if err != nil {
				return err
			}
			defer a.close()

			var worker *jobs.Worker
			if !noWorker {
				if err := a.ensureVectorDimension(ctx); err != nil {
					return err
				}
				worker, err = a.newWorker(ctx)
				if err != nil {
					return err
				}
				go worker.Start(ctx)
				defer worker.Stop()
			}

			out := cmd.OutOrStdout()
			w, err := watcher.New(a.documents, watcher.Config{
				Extensions: extensions,
				OnUpload: func(path string, doc *domain.Document, err error) {
					if err != nil {
						log.Printf("watch: %s: %v", path, err)
						return
					}
					fmt.Fprintf(out, "Document queued: %s (%s)\n", doc.Filename, doc.ID)
					if worker != nil {
						worker.Notify()
					}
				},
			})
			if err != nil {
				return err
			}

			return w.Run(ctx, dir)
		},
	}

	cmd.Flags().StringSliceVarP(&extensions, "ext", "e", nil, "File extensions to upload, e.g. --ext pdf,md (default: all supported)")
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Only upload; leave processing to a running server")

	return cmd
}

