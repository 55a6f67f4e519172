package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"proofgate/internal/api"
	"proofgate/internal/ingest"
)

// serveCmd runs the HTTP API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ProofGate HTTP API",
	Long: `Starts the HTTP API server.

Endpoints:
  POST /api/judge        - run the judgment pipeline
  GET  /api/traces       - list run traces
  GET  /api/traces/{id}  - fetch one trace
  GET  /api/excerpts     - list available excerpts
  GET  /health           - health check

The docs directory is watched; editing a document reloads the evidence pack
without a restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, traces, orch, err := bootstrap()
	if err != nil {
		return err
	}
	defer traces.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	packs, err := ingest.NewPackWatcher(cfg.DocsDir(), nil)
	if err != nil {
		return fmt.Errorf("failed to create pack watcher: %w", err)
	}
	if err := packs.Start(ctx); err != nil {
		return fmt.Errorf("failed to load evidence pack: %w", err)
	}
	defer packs.Stop()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(orch, traces, packs, cfg).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ProofGate API listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("docs", cfg.DocsDir()),
			zap.Int("excerpts", len(packs.Current().AllExcerpts())),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
