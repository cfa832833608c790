package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	trunkbuild "github.com/jmylchreest/trunkgo/internal/build"
	"github.com/jmylchreest/trunkgo/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the project whenever a watched file changes",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sourceDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	logger := slog.Default()
	builder, err := trunkbuild.New(cfg, sourceDir, logger)
	if err != nil {
		return err
	}

	paths := cfg.Watch.Paths
	if len(paths) == 0 {
		paths = []string{sourceDir}
	}
	w, err := watch.New(watch.Options{
		Paths:        paths,
		Ignore:       cfg.Watch.Ignore,
		Debounce:     cfg.Watch.Debounce,
		PollFallback: cfg.Watch.PollFallback,
	}, logger)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("watcher stopped", "error", err)
		}
	}()

	runOnce := func() {
		result, err := builder.Run(ctx, sourceDir)
		if err != nil {
			logger.Error("build failed", "error", err)
			return
		}
		logger.Info("build complete",
			slog.Int("artifacts", len(result.Artifacts)),
			slog.Duration("duration", result.Duration),
		)
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Triggers():
			runOnce()
		}
	}
}
