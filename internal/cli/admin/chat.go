package admin

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/spf13/cobra"
)

type sourceView struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type messageView struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Sources   []sourceView `json:"sources,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func toSourceViews(sources []domain.MessageSource) []sourceView {
	views := make([]sourceView, len(sources))
	for i, s := range sources {
		views[i] = sourceView(s)
	}
	return views
}

func ChatCmd() *cobra.Command {
	var (
		sessionID   string
		temperature float32
		topK        int
	)

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question about the ingested documents",
		Long:  "Ask a question within a session. Earlier turns of the session are used as context.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{providers: true})
			if err != nil {
				return err
			}
			defer a.close()

			input := service.AskInput{
				SessionID: sessionID,
				Message:   strings.Join(args, " "),
				TopK:      topK,
			}
			if cmd.Flags().Changed("temperature") {
				input.Temperature = &temperature
			}

			out, err := a.query.Ask(cmd.Context(), input)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == outputJSON {
				return writeJSON(w, map[string]any{
					"conversation_id": out.ConversationID,
					"message_id":      out.MessageID,
					"answer":          out.Answer,
					"sources":         toSourceViews(out.Sources),
				})
			}

			fmt.Fprintln(w, out.Answer)
			if len(out.Sources) > 0 {
				fmt.Fprintln(w, "\nSources:")
				for _, s := range out.Sources {
					fmt.Fprintf(w, "  %s #%d (%.3f)\n", s.DocumentID, s.ChunkIndex, s.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "cli", "Session id grouping the conversation")
	cmd.Flags().Float32VarP(&temperature, "temperature", "t", 0, "Sampling temperature (default: provider default)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default from DOCQA_TOP_K)")
	addOutputFlag(cmd)

	return cmd
}

func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Show the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			history, err := a.history().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == outputJSON {
				messages := make([]messageView, len(history.Messages))
				for i, m := range history.Messages {
					messages[i] = messageView{
						ID:        m.ID,
						Role:      string(m.Role),
						Content:   m.Content,
						Sources:   toSourceViews(m.Sources),
						CreatedAt: m.CreatedAt,
					}
				}
				return writeJSON(w, map[string]any{
					"conversation_id": history.Conversation.ID,
					"session_id":      history.Conversation.SessionID,
					"title":           history.Conversation.Title,
					"messages":        messages,
				})
			}

			fmt.Fprintf(w, "%s\n\n", history.Conversation.Title)
			for _, m := range history.Messages {
				fmt.Fprintf(w, "[%s] %s\n%s\n\n", m.CreatedAt.Format("2006-01-02 15:04:05"), m.Role, m.Content)
			}
			return nil
		},
	}

	addOutputFlag(cmd)
	return cmd
}
