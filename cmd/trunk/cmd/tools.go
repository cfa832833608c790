package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/trunkgo/internal/pipeline/tasks"
	"github.com/jmylchreest/trunkgo/internal/tooling"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect external tool resolution",
}

var toolsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved path and version of every external tool trunk uses",
	RunE:  runToolsShow,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsShowCmd)
}

func runToolsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	cacheDir := cfg.Tooling.CacheDir
	if cacheDir == "" {
		if userCache, uerr := os.UserCacheDir(); uerr == nil {
			cacheDir = filepath.Join(userCache, "trunkgo")
		}
	}

	var downloader *tooling.Downloader
	if !cfg.Build.Offline {
		downloader = tooling.NewDownloader(cfg.Tooling.HTTPTimeout, cfg.Tooling.MaxRetries, cfg.Tooling.RetryDelay, cfg.Tooling.DownloadsURL)
	}
	resolver := tooling.NewResolver(logger, cacheDir, cfg.Build.Offline, downloader)

	ctx := context.Background()
	for _, d := range []tooling.Descriptor{
		tasks.SassDescriptor,
		tasks.TailwindDescriptor,
		tasks.BindgenDescriptor,
		tasks.WasmOptDescriptor,
	} {
		res, err := resolver.Resolve(ctx, d)
		if err != nil {
			fmt.Printf("%-16s unavailable: %v\n", d.Name, err)
			continue
		}
		fmt.Printf("%-16s %s (%s)\n", d.Name, res.Path, res.Version)
	}
	return nil
}
