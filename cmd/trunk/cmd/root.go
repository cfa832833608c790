// Package cmd implements the CLI commands for trunkgo.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/trunkgo/internal/config"
	"github.com/jmylchreest/trunkgo/internal/version"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "trunk",
	Short:   "Build, bundle, and ship WebAssembly web applications",
	Version: version.Short(),
	Long: `trunk builds Rust-to-WebAssembly web applications: it compiles the
project, runs wasm-bindgen and wasm-opt, processes the assets declared on
the entry HTML (Sass/Tailwind CSS, icons, inline snippets, copied files),
and assembles everything into a ready-to-serve dist directory.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to Trunk.toml (default: ./Trunk.toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("release", false, "build in release mode")
	rootCmd.PersistentFlags().Bool("offline", false, "never attempt network access for tool downloads")
	rootCmd.PersistentFlags().String("public-url", "", "override the public URL base")
	rootCmd.PersistentFlags().String("dist", "", "override the dist output directory")

	mustBindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	mustBindPFlag("build.release", rootCmd.PersistentFlags().Lookup("release"))
	mustBindPFlag("build.offline", rootCmd.PersistentFlags().Lookup("offline"))
	mustBindPFlag("root.public_url", rootCmd.PersistentFlags().Lookup("public-url"))
	mustBindPFlag("root.dist", rootCmd.PersistentFlags().Lookup("dist"))
}

// loadConfig loads configuration via the shared config.Load path, letting
// persistent-flag bindings in viper override file/env values.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	config.SetDefaults(v)

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("Trunk.toml"); err == nil {
			path = "Trunk.toml"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TRUNK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// initLogging configures the slog default logger from viper-bound flags.
func initLogging() error {
	level := slog.LevelInfo
	switch strings.ToLower(viper.GetString("logging.level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(viper.GetString("logging.format")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
