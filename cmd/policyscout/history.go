package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/database"
)

// defaultHistoryLimit is the number of cached policies listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or delete cached policy summaries",
		Long: `History lists cached policy summaries, most recently updated first.

Examples:
  # Show the 20 most recently updated policies
  policyscout history

  # Show everything as JSON
  policyscout history --limit 0 --json

  # Forget a site so the next request crawls it again
  policyscout history --delete https://example.com`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of entries (0 for all)")
	cmd.Flags().String("delete", "",
		"Delete the cached entry of this site URL")
	addStoreFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	deleteURL, err := cmd.Flags().GetString("delete")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx := context.Background()
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db == nil {
		return errNoDatabase
	}
	defer db.Close()

	if deleteURL != "" {
		key := database.Key(deleteURL)
		deleted, err := db.Delete(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		if deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted cached policy for %s\n", deleteURL)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "No cached policy for %s\n", deleteURL)
		}
		return nil
	}

	records, err := db.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list cached policies: %w", err)
	}

	out, closeOut, err := openOutput(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeOut()

	if _, err := newReportWriter(cfg, out).WriteHistory(records); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
