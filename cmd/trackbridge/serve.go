package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpserver "trackbridge/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolve API with health and metrics endpoints",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting trackbridge",
		zap.String("llmProvider", config.LLM.Provider),
		zap.Int("workers", config.Resolver.Workers))

	metrics := httpserver.NewMetrics()
	orchestrator, err := buildOrchestrator(ctx, config, metrics)
	if err != nil {
		return err
	}

	server := httpserver.NewServer(&config.Server, orchestrator, metrics, logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("trackbridge started successfully",
		zap.String("httpAddr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("trackbridge stopped with error", zap.Error(err))
		return err
	}

	logger.Info("trackbridge stopped gracefully")
	return nil
}
