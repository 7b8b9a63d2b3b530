package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/recallhq/recall/internal/app"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/log"
	"github.com/recallhq/recall/internal/pipeline"
	"github.com/recallhq/recall/internal/transport"
)

// runAssistant starts the assistant on the console transport and blocks
// until the input closes or a signal arrives.
func runAssistant() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("application close error", "error", closeErr)
		}
	}()

	console := transport.NewConsole(os.Stdin, os.Stdout)

	p, err := pipeline.New(a.Store, a.Classifier, a.Reranker, a.Normalizer,
		a.Registry, console, cfg.SearchTopK, cfg.MinScore, logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	var wg sync.WaitGroup
	if a.Sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Sweeper.Run(ctx)
		}()
	}

	logger.Info("recall is listening", "model", cfg.ModelName, "registry", cfg.RegistryBackend)
	runErr := p.Run(ctx)

	cancel()
	wg.Wait()

	if runErr != nil {
		return fmt.Errorf("pipeline stopped: %w", runErr)
	}
	return nil
}
