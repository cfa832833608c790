package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build output, and optionally the tool cache and cargo target directory",
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().Bool("tools", false, "also remove the downloaded-tool cache directory")
	cleanCmd.Flags().Bool("cargo", false, "also remove the cargo target directory")
	mustBindPFlag("clean.tools", cleanCmd.Flags().Lookup("tools"))
	mustBindPFlag("clean.cargo", cleanCmd.Flags().Lookup("cargo"))
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sourceDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	logger := slog.Default()
	distDir := cfg.Root.Dist
	if !filepath.IsAbs(distDir) {
		distDir = filepath.Join(sourceDir, distDir)
	}
	if err := os.RemoveAll(distDir); err != nil {
		return fmt.Errorf("removing dist directory: %w", err)
	}
	logger.Info("removed dist directory", "path", distDir)

	if cfg.Clean.Cargo {
		targetDir := cfg.Root.TargetDir
		if !filepath.IsAbs(targetDir) {
			targetDir = filepath.Join(sourceDir, targetDir)
		}
		if err := os.RemoveAll(targetDir); err != nil {
			return fmt.Errorf("removing cargo target directory: %w", err)
		}
		logger.Info("removed cargo target directory", "path", targetDir)
	}

	if cfg.Clean.Tools {
		cacheDir := cfg.Tooling.CacheDir
		if cacheDir == "" {
			if userCache, uerr := os.UserCacheDir(); uerr == nil {
				cacheDir = filepath.Join(userCache, "trunkgo")
			}
		}
		if cacheDir != "" {
			if err := os.RemoveAll(cacheDir); err != nil {
				return fmt.Errorf("removing tool cache: %w", err)
			}
			logger.Info("removed tool cache", "path", cacheDir)
		}
	}

	return nil
}
