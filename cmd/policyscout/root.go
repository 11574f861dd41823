package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for policyscout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policyscout",
		Short: "Find, crawl and summarize website privacy policies",
		Long: `policyscout finds the privacy policy of a website, gathers the text of the
policy and its related pages (cookie notices, data requests, regional
supplements) within a small page budget, and produces a short summary.

Pages are rendered with headless Chrome by default. Use --renderer static
for plain HTTP fetching when no browser is available.

Secrets are read from the environment:
  BRAVE_API_KEY           enables the web-search fallback
  GEMINI_API_KEY          enables LLM summaries
  POLICYSCOUT_MYSQL_DSN   MySQL cache (with --db-driver mysql)`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addPersistentFlags(cmd)

	cmd.AddCommand(NewFindCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRefreshCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// addPersistentFlags registers the global flags that apply to all commands.
func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .policyscout in current or home directory)")
	cmd.PersistentFlags().String("log-file", "",
		"Write logs to a rotating file instead of stderr")
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
