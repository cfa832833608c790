// Package build wires the htmlrewrite extractor, the pipeline planner and
// engine, and the stage publisher into the single operation every
// subcommand (build, watch, serve) drives: parse the entry HTML, plan
// tasks for its descriptors, run them, and publish the result.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/trunkgo/internal/config"
	"github.com/jmylchreest/trunkgo/internal/hooks"
	"github.com/jmylchreest/trunkgo/internal/htmlrewrite"
	"github.com/jmylchreest/trunkgo/internal/pipeline"
	"github.com/jmylchreest/trunkgo/internal/pipeline/tasks"
	"github.com/jmylchreest/trunkgo/internal/stage"
	"github.com/jmylchreest/trunkgo/internal/tooling"
)

// Builder runs repeated builds of one project against a fixed
// configuration, reusing its Engine across runs so watch-mode rebuilds
// participate in the engine's single-flight supersession.
type Builder struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *pipeline.Engine
	area     *stage.Area
	resolver *tooling.Resolver
	hooks    *hooks.Runner
}

// New constructs a Builder from cfg. sourceDir is the project root entry
// HTML is resolved relative to.
func New(cfg *config.Config, sourceDir string, logger *slog.Logger) (*Builder, error) {
	distDir := cfg.Root.Dist
	if !filepath.IsAbs(distDir) {
		distDir = filepath.Join(sourceDir, distDir)
	}
	area, err := stage.New(distDir, cfg.Root.EntryHTML)
	if err != nil {
		return nil, fmt.Errorf("initializing dist area: %w", err)
	}

	cacheDir := cfg.Tooling.CacheDir
	if cacheDir == "" {
		userCache, uerr := os.UserCacheDir()
		if uerr == nil {
			cacheDir = filepath.Join(userCache, "trunkgo")
		} else {
			cacheDir = filepath.Join(os.TempDir(), "trunkgo-cache")
		}
	}
	var downloader *tooling.Downloader
	if !cfg.Build.Offline {
		downloader = tooling.NewDownloader(cfg.Tooling.HTTPTimeout, cfg.Tooling.MaxRetries, cfg.Tooling.RetryDelay, cfg.Tooling.DownloadsURL)
	}
	resolver := tooling.NewResolver(logger, cacheDir, cfg.Build.Offline, downloader)

	return &Builder{
		cfg:      cfg,
		logger:   logger,
		engine:   pipeline.NewEngine(logger),
		area:     area,
		resolver: resolver,
		hooks:    hooks.NewRunner(logger),
	}, nil
}

// DistDir returns the directory builds are published to.
func (b *Builder) DistDir() string {
	return b.area.DistDir()
}

// planner constructs a fresh Planner wired with every task kind, grounded
// on each descriptor's resolved collaborators (tool resolver, logger).
func (b *Builder) planner() *pipeline.Planner {
	p := pipeline.NewPlanner()
	p.Register(pipeline.KindRust, tasks.NewRustTaskFactory(b.resolver, b.logger))
	p.Register(pipeline.KindSass, tasks.NewSassTaskFactory(b.resolver, b.logger))
	p.Register(pipeline.KindTailwind, tasks.NewTailwindTaskFactory(b.resolver, b.logger))
	p.Register(pipeline.KindCSS, tasks.NewCSSTask)
	p.Register(pipeline.KindIcon, tasks.NewIconTask)
	p.Register(pipeline.KindInline, tasks.NewInlineTask)
	p.Register(pipeline.KindCopyFile, tasks.NewCopyFileTask)
	p.Register(pipeline.KindCopyDir, tasks.NewCopyDirTask)
	p.Register(pipeline.KindScript, tasks.NewScriptTask)
	return p
}

// Run executes one full build: pre_build hook, parse, plan, execute
// (concurrently with the build-stage hook), stage, post_build hook, swap.
// sourceDir names the project root the entry HTML is resolved relative to.
func (b *Builder) Run(ctx context.Context, sourceDir string) (*pipeline.Result, error) {
	entryPath := filepath.Join(sourceDir, b.cfg.Root.EntryHTML)

	profile := pipeline.ProfileDebug
	if b.cfg.Build.Release {
		profile = pipeline.ProfileRelease
	}

	stagingDir, err := b.area.NewStagingDir()
	if err != nil {
		return nil, err
	}

	env := hooks.Env{
		Profile:    string(profile),
		HTMLFile:   entryPath,
		SourceDir:  sourceDir,
		StagingDir: stagingDir,
		DistDir:    b.area.DistDir(),
		PublicURL:  b.cfg.Root.PublicURL,
	}

	if err := b.hooks.Run(ctx, config.HookStagePreBuild, b.cfg.Hooks, env); err != nil {
		b.area.Discard(stagingDir)
		return nil, fmt.Errorf("pre_build hook: %w", err)
	}

	rw := htmlrewrite.New(sourceDir, b.cfg.Root.PublicURL)
	extracted, err := rw.ParseFile(entryPath)
	if err != nil {
		b.area.Discard(stagingDir)
		return nil, fmt.Errorf("parsing %s: %w", entryPath, err)
	}
	for _, warning := range extracted.Warnings {
		b.logger.Warn("entry html warning", "detail", warning)
	}

	tasksList, err := b.planner().Plan(extracted.Descriptors)
	if err != nil {
		b.area.Discard(stagingDir)
		return nil, fmt.Errorf("planning build: %w", err)
	}

	minify := pipeline.MinifyPolicy(b.cfg.Build.Minify)

	rc := &pipeline.RuntimeContext{
		SourceDir:  sourceDir,
		PublicURL:  b.cfg.Root.PublicURL,
		StagingDir: stagingDir,
		Profile:    profile,
		Minify:     minify,
		Offline:    b.cfg.Build.Offline,
		Filehash:   b.cfg.Build.Filehash,
		NoSRI:      b.cfg.Build.NoSriHash,
	}

	buildHook := func(hctx context.Context) error {
		return b.hooks.Run(hctx, config.HookStageBuild, b.cfg.Hooks, env)
	}

	result, err := b.engine.Run(ctx, entryPath, extracted.Skeleton, tasksList, rc, buildHook)
	if err != nil {
		b.area.Discard(stagingDir)
		return nil, err
	}

	if err := b.area.StageHTML(stagingDir, result); err != nil {
		b.area.Discard(stagingDir)
		return nil, fmt.Errorf("staging build output: %w", err)
	}

	if err := b.hooks.Run(ctx, config.HookStagePostBuild, b.cfg.Hooks, env); err != nil {
		b.area.Discard(stagingDir)
		return nil, fmt.Errorf("post_build hook: %w", err)
	}

	if err := b.area.Swap(stagingDir); err != nil {
		return nil, fmt.Errorf("publishing build: %w", err)
	}

	return result, nil
}
