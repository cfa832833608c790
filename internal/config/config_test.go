package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "index.html", cfg.Root.EntryHTML)
	assert.Equal(t, "target", cfg.Root.TargetDir)
	assert.Equal(t, "dist", cfg.Root.Dist)
	assert.Equal(t, "/", cfg.Root.PublicURL)

	assert.False(t, cfg.Build.Release)
	assert.Equal(t, "on_release", cfg.Build.Minify)
	assert.True(t, cfg.Build.Filehash)

	assert.Equal(t, "127.0.0.1", cfg.Serve.Host)
	assert.Equal(t, 8080, cfg.Serve.Port)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "Trunk.toml")

	configContent := `
[root]
entry_html = "app.html"
public_url = "/app/"

[serve]
address = "0.0.0.0"
port = 9090

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "app.html", cfg.Root.EntryHTML)
	assert.Equal(t, "/app/", cfg.Root.PublicURL)
	assert.Equal(t, "0.0.0.0", cfg.Serve.Host)
	assert.Equal(t, 9090, cfg.Serve.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRUNK_SERVE_PORT", "3000")
	t.Setenv("TRUNK_LOGGING_LEVEL", "warn")
	t.Setenv("TRUNK_BUILD_RELEASE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3000, cfg.Serve.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Build.Release)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "Trunk.toml")

	configContent := `
[serve]
port = 8080
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	t.Setenv("TRUNK_SERVE_PORT", "9000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Serve.Port)
}

func validConfig() *Config {
	return &Config{
		Root:    RootConfig{EntryHTML: "index.html"},
		Build:   BuildConfig{Minify: "on_release"},
		Serve:   ServeConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too high", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Serve.Port = tt.port
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "serve.port")
		})
	}
}

func TestValidate_EmptyEntryHTML(t *testing.T) {
	cfg := validConfig()
	cfg.Root.EntryHTML = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "root.entry_html")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "invalid"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_InvalidMinifyPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Build.Minify = "sometimes"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "build.minify")
}

func TestValidate_InvalidTrunkVersionConstraint(t *testing.T) {
	cfg := validConfig()
	cfg.Root.TrunkVersionReq = "not a constraint!!"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "trunk_version")
}

func TestValidate_ProxyRuleRequiresBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Proxy = []ProxyRule{{Backend: ""}}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "proxy[0].backend")
}

func TestValidate_HookRequiresCommand(t *testing.T) {
	cfg := validConfig()
	cfg.Hooks = []Hook{{Stage: "pre_build"}}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hooks[0].command")
}

func TestValidate_HookRejectsUnknownStage(t *testing.T) {
	cfg := validConfig()
	cfg.Hooks = []Hook{{Stage: "pre_serve", Command: []string{"echo", "hi"}}}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hooks[0].stage")
}

func TestHook_CommandForFallsBackWhenNoOSOverride(t *testing.T) {
	h := Hook{Command: []string{"echo", "default"}}
	assert.Equal(t, []string{"echo", "default"}, h.CommandFor("plan9"))
}

func TestHook_CommandForUsesOSOverride(t *testing.T) {
	h := Hook{
		Command: []string{"echo", "default"},
		OS:      map[string][]string{"windows": {"cmd", "/C", "echo", "win"}},
	}
	assert.Equal(t, []string{"cmd", "/C", "echo", "win"}, h.CommandFor("windows"))
	assert.Equal(t, []string{"echo", "default"}, h.CommandFor("linux"))
}

func TestServeConfig_Addr(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"localhost", "127.0.0.1", 8080, "127.0.0.1:8080"},
		{"all interfaces", "0.0.0.0", 3000, "0.0.0.0:3000"},
		{"hostname", "example.com", 443, "example.com:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ServeConfig{Host: tt.host, Port: tt.port}
			assert.Equal(t, tt.expected, cfg.Addr())
		})
	}
}

func TestBuildConfig_ShouldMinify(t *testing.T) {
	assert.True(t, (&BuildConfig{Minify: "always"}).ShouldMinify())
	assert.False(t, (&BuildConfig{Minify: "never", Release: true}).ShouldMinify())
	assert.True(t, (&BuildConfig{Minify: "on_release", Release: true}).ShouldMinify())
	assert.False(t, (&BuildConfig{Minify: "on_release", Release: false}).ShouldMinify())
}

func TestRootConfig_CheckCompatibility(t *testing.T) {
	cfg := &RootConfig{TrunkVersionReq: "^0.20"}
	assert.NoError(t, cfg.CheckCompatibility("0.20.3"))
	assert.Error(t, cfg.CheckCompatibility("0.19.0"))
	assert.NoError(t, cfg.CheckCompatibility("dev"))
}

func TestRootConfig_CheckCompatibility_NoConstraint(t *testing.T) {
	cfg := &RootConfig{}
	assert.NoError(t, cfg.CheckCompatibility("anything"))
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "Trunk.toml")

	invalidContent := `this is not = valid [[[ toml`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidContent), 0o600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_NonExistentExplicitFile(t *testing.T) {
	_, err := Load("/nonexistent/path/Trunk.toml")
	assert.Error(t, err)
}
