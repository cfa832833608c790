// Package config provides configuration management for trunkgo using Viper.
// It supports configuration from files, environment variables, and defaults:
// environment variables override the file, which overrides the defaults
// (CLI flags bind on top of all three).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort       = 8080
	defaultServerTimeout    = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultWatchDebounce    = 500 * time.Millisecond
	defaultToolHTTPTimeout  = 2 * time.Minute
	defaultToolMaxRetries   = 3
	defaultToolRetryDelay   = 2 * time.Second
	defaultProxyWSTimeout   = 30 * time.Second
	defaultHookTimeout      = 30 * time.Second
	defaultCacheRetention   = 30 * 24 * time.Hour
	defaultMaxArtifactBytes = 256 * 1024 * 1024 // 256MB
)

// Config holds all configuration for the application. It is the single
// struct Viper unmarshals into, assembled from a config file, environment
// variables prefixed TRUNK_, and CLI flags, in ascending precedence.
type Config struct {
	Root    RootConfig    `mapstructure:"root"`
	Build   BuildConfig   `mapstructure:"build"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Serve   ServeConfig   `mapstructure:"serve"`
	Clean   CleanConfig   `mapstructure:"clean"`
	Tooling ToolingConfig `mapstructure:"tooling"`
	Logging LoggingConfig `mapstructure:"logging"`
	Proxy   []ProxyRule   `mapstructure:"proxy"`
	Hooks   []Hook        `mapstructure:"hooks"`
}

// RootConfig holds project-wide settings shared by every subcommand.
type RootConfig struct {
	EntryHTML      string `mapstructure:"entry_html"`
	TargetDir      string `mapstructure:"target_dir"`
	Dist           string `mapstructure:"dist"`
	PublicURL      string `mapstructure:"public_url"`
	TrunkVersionReq string `mapstructure:"trunk_version"`
}

// BuildConfig holds build-time options.
type BuildConfig struct {
	Release   bool   `mapstructure:"release"`
	Minify    string `mapstructure:"minify"` // never, on_release, always
	Offline   bool   `mapstructure:"offline"`
	Filehash  bool   `mapstructure:"filehash"`
	NoSriHash bool   `mapstructure:"no_sri"`
}

// WatchConfig holds filesystem-watch options.
type WatchConfig struct {
	Paths    []string `mapstructure:"paths"`
	Ignore   []string `mapstructure:"ignore"`
	PollFallback bool  `mapstructure:"poll_fallback"`
	// Debounce is the quiet period after the last filesystem event before a
	// rebuild is triggered — on the order of hundreds of milliseconds, so a
	// plain time.Duration (parsed by Viper's standard "500ms"/"1s" support)
	// is all this ever needs.
	Debounce time.Duration `mapstructure:"debounce"`
}

// ServeConfig holds dev-server options.
type ServeConfig struct {
	Host          string            `mapstructure:"address"`
	Port          int               `mapstructure:"port"`
	Open          bool              `mapstructure:"open"`
	NoAutoreload  bool              `mapstructure:"no_autoreload"`
	NoSpaFallback bool              `mapstructure:"no_spa_fallback"`
	TLSCert       string            `mapstructure:"tls_cert"`
	TLSKey        string            `mapstructure:"tls_key"`
	// Headers are appended to every response the dev server serves.
	Headers       map[string]string `mapstructure:"headers"`
	WatchConfig   `mapstructure:",squash"`
}

// CleanConfig holds clean-subcommand options.
type CleanConfig struct {
	Tools   bool `mapstructure:"tools"`
	Cargo   bool `mapstructure:"cargo"`
}

// ToolingConfig holds external-tool resolution and caching options.
type ToolingConfig struct {
	CacheDir      string        `mapstructure:"cache_dir"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Offline       bool          `mapstructure:"offline"`
	DownloadsURL  string        `mapstructure:"downloads_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ProxyRule describes one dev-server reverse-proxy rule.
type ProxyRule struct {
	Backend          string            `mapstructure:"backend"`
	RewritePrefix    string            `mapstructure:"rewrite_prefix"`
	WSUpgradeEnabled bool              `mapstructure:"ws"`
	InsecureSkipTLS  bool              `mapstructure:"insecure_skip_tls_verify"`
	// RequestHeaders are added to every request forwarded to the backend.
	RequestHeaders map[string]string `mapstructure:"request_headers"`
	// NoRedirect disables following redirects returned by the backend;
	// the redirect response is relayed to the client as-is.
	NoRedirect bool `mapstructure:"no_redirect"`
	// NoSystemProxy bypasses the environment's HTTP_PROXY/HTTPS_PROXY/
	// NO_PROXY settings for requests to this rule's backend.
	NoSystemProxy bool `mapstructure:"no_system_proxy"`
}

// Hook stages, in pipeline order.
const (
	HookStagePreBuild  = "pre_build"
	HookStageBuild     = "build"
	HookStagePostBuild = "post_build"
)

// Hook describes one subprocess run at a fixed point in the build pipeline.
type Hook struct {
	Stage   string              `mapstructure:"stage"` // pre_build, build, post_build
	Command []string            `mapstructure:"command"`
	// OS maps GOOS ("windows", "darwin", "linux", ...) to a command
	// override; CommandFor falls back to Command when the running OS has
	// no entry.
	OS map[string][]string `mapstructure:"os"`
}

// CommandFor returns h's command for the given GOOS, honoring a per-OS
// override if one is configured.
func (h Hook) CommandFor(goos string) []string {
	if cmd, ok := h.OS[goos]; ok {
		return cmd
	}
	return h.Command
}

// Load reads configuration from configPath (if non-empty; otherwise from
// Trunk.toml in the working directory), environment variables, and
// defaults, with environment variables taking precedence over the file and
// the file over the defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("Trunk")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TRUNK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// It must run before the config file is read so file/env values can
// override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root.entry_html", "index.html")
	v.SetDefault("root.target_dir", "target")
	v.SetDefault("root.dist", "dist")
	v.SetDefault("root.public_url", "/")

	v.SetDefault("build.release", false)
	v.SetDefault("build.minify", "on_release")
	v.SetDefault("build.filehash", true)

	v.SetDefault("watch.debounce", defaultWatchDebounce.String())
	v.SetDefault("watch.ignore", []string{".git", "target", "dist", "node_modules"})

	v.SetDefault("serve.address", "127.0.0.1")
	v.SetDefault("serve.port", defaultServerPort)

	v.SetDefault("tooling.cache_dir", "")
	v.SetDefault("tooling.http_timeout", defaultToolHTTPTimeout)
	v.SetDefault("tooling.max_retries", defaultToolMaxRetries)
	v.SetDefault("tooling.retry_delay", defaultToolRetryDelay)
	v.SetDefault("tooling.downloads_url", "https://github.com")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Serve.Port < 1 || c.Serve.Port > maxPort {
		return fmt.Errorf("serve.port must be between 1 and %d", maxPort)
	}

	if c.Root.EntryHTML == "" {
		return fmt.Errorf("root.entry_html is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	validMinify := map[string]bool{"never": true, "on_release": true, "always": true}
	if !validMinify[c.Build.Minify] {
		return fmt.Errorf("build.minify must be one of: never, on_release, always")
	}

	if c.Root.TrunkVersionReq != "" {
		if _, err := semver.NewConstraint(c.Root.TrunkVersionReq); err != nil {
			return fmt.Errorf("root.trunk_version is not a valid semver constraint: %w", err)
		}
	}

	for i, rule := range c.Proxy {
		if rule.Backend == "" {
			return fmt.Errorf("proxy[%d].backend is required", i)
		}
	}
	validHookStages := map[string]bool{HookStagePreBuild: true, HookStageBuild: true, HookStagePostBuild: true}
	for i, hook := range c.Hooks {
		if !validHookStages[hook.Stage] {
			return fmt.Errorf("hooks[%d].stage must be one of: pre_build, build, post_build", i)
		}
		if len(hook.Command) == 0 {
			return fmt.Errorf("hooks[%d].command is required", i)
		}
	}

	return nil
}

// ShouldMinify reports whether the given build should be minified under
// this configuration's policy.
func (b *BuildConfig) ShouldMinify() bool {
	switch b.Minify {
	case "always":
		return true
	case "on_release":
		return b.Release
	default:
		return false
	}
}

// Addr returns the dev server's bind address in host:port form.
func (c *ServeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CheckCompatibility validates the running binary's version against
// root.trunk_version, if set.
func (c *RootConfig) CheckCompatibility(runningVersion string) error {
	if c.TrunkVersionReq == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(c.TrunkVersionReq)
	if err != nil {
		return fmt.Errorf("invalid trunk_version constraint: %w", err)
	}
	v, err := semver.NewVersion(runningVersion)
	if err != nil {
		// versions that do not parse as semver, such as "dev", are always
		// accepted.
		return nil
	}
	if !constraint.Check(v) {
		return fmt.Errorf("trunk %s does not satisfy required version %q", runningVersion, c.TrunkVersionReq)
	}
	return nil
}
