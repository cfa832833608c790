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
	"github.com/jmylchreest/trunkgo/internal/devserver"
	"github.com/jmylchreest/trunkgo/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the project and serve it with autoreload",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("address", "", "dev server bind address")
	serveCmd.Flags().Int("port", 0, "dev server port")
	mustBindPFlag("serve.address", serveCmd.Flags().Lookup("address"))
	mustBindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	srv, err := devserver.New(cfg.Serve, builder.DistDir(), cfg.Proxy, logger)
	if err != nil {
		return fmt.Errorf("configuring dev server: %w", err)
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
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("watcher stopped", "error", err)
		}
	}()

	runOnce := func() {
		result, err := builder.Run(ctx, sourceDir)
		if err != nil {
			logger.Error("build failed", "error", err)
			srv.NotifyBuildFailed(err)
			return
		}
		logger.Info("build complete",
			slog.Int("artifacts", len(result.Artifacts)),
			slog.Duration("duration", result.Duration),
		)
		srv.NotifyBuildSucceeded()
	}
	runOnce()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.Triggers():
				runOnce()
			}
		}
	}()

	return srv.ListenAndServe(ctx)
}
