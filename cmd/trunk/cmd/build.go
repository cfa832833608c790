package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	trunkbuild "github.com/jmylchreest/trunkgo/internal/build"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the project once",
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	result, err := builder.Run(context.Background(), sourceDir)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.Info("build complete",
		slog.Int("artifacts", len(result.Artifacts)),
		slog.Duration("duration", result.Duration),
		slog.String("dist", builder.DistDir()),
	)
	return nil
}
