package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/cli/admin"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqad",
		Short: "Document question answering server and CLI",
		Long: `docqad ingests documents into a vector store and answers questions about them.

Configuration is read from DOCQA_* environment variables or a .env file.
  DOCQA_DATABASE_URL     PostgreSQL connection string (required)
  DOCQA_OPENAI_API_KEY   OpenAI credentials
  DOCQA_GEMINI_API_KEY   Gemini credentials`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.DocumentCmd())
	rootCmd.AddCommand(admin.ChatCmd())
	rootCmd.AddCommand(admin.HistoryCmd())
	rootCmd.AddCommand(admin.WatchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd, os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
