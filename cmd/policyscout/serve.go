package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/config"
	"github.com/tldrprivacy/policyscout/internal/model"
	"github.com/tldrprivacy/policyscout/internal/pipeline"
	"github.com/tldrprivacy/policyscout/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve policy summaries over HTTP",
		Long: `Serve starts an HTTP server that answers summary requests.

Endpoints:
  POST /analyze   {"url": "https://example.com"} -> {"summary": "...", "source": "cached|new"}
  GET  /healthz   liveness and database check

Concurrent requests for the same site share one analysis. Logs are written
as JSON.

Examples:
  # Listen on the default port 3000
  policyscout serve

  # Listen on localhost only, with a MySQL cache
  POLICYSCOUT_MYSQL_DSN='user:pass@tcp(db:3306)/policies' \
    policyscout serve --listen 127.0.0.1:8080 --db-driver mysql`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"Address the HTTP server listens on")
	cmd.Flags().Duration("analysis-timeout", server.DefaultAnalysisTimeout,
		"Upper bound of one analysis")
	addCrawlFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	cfg.ListenAddr, err = cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	analysisTimeout, err := cmd.Flags().GetDuration("analysis-timeout")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	factory := pipeline.DefaultFactory(cfg, svc.deps)
	opts := []server.Option{
		server.WithAddr(cfg.ListenAddr),
		server.WithLogger(logger),
		server.WithAnalysisTimeout(analysisTimeout),
	}
	if svc.store != nil {
		opts = append(opts, server.WithHealthCheck("database", svc.store.Ping))
	}

	srv := server.New(func(ctx context.Context, siteURL string) (*model.Analysis, error) {
		return pipeline.Analyze(ctx, factory, siteURL)
	}, opts...)

	return srv.Run(ctx)
}
