package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"golang.org/x/net/html"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
	"github.com/jmylchreest/trunkgo/internal/tooling"
)

var sassVersionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// SassDescriptor is the tool descriptor for the sass compiler, exported so
// callers (the CLI's `tools show`) can list it without constructing a
// task.
var SassDescriptor = tooling.Descriptor{
	Name:         tooling.ToolSassCompiler,
	BinaryName:   "sass",
	VersionArgs:  []string{"--version"},
	VersionRegex: sassVersionRegex,
}

// SassTask implements the `sass`/`scss` pipeline: invoke the sass compiler
// on the descriptor's href, then hash/stage/patch like the css pipeline,
// or, with data-inline, emit the output as an inline <style> without
// staging a file.
type SassTask struct {
	descriptor *pipeline.LinkDescriptor
	resolver   *tooling.Resolver
	logger     *slog.Logger
}

// NewSassTaskFactory returns a TaskFactory bound to resolver, used by the
// planner to construct one SassTask per sass/scss descriptor.
func NewSassTaskFactory(resolver *tooling.Resolver, logger *slog.Logger) pipeline.TaskFactory {
	return func(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
		return &SassTask{descriptor: d, resolver: resolver, logger: logger}, nil
	}
}

func (t *SassTask) Kind() pipeline.DescriptorKind        { return pipeline.KindSass }
func (t *SassTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *SassTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)
	if _, err := os.Stat(srcPath); err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	res, err := t.resolver.Resolve(ctx, SassDescriptor)
	if err != nil {
		return nil, err
	}

	outPath, err := os.CreateTemp("", "trunk-sass-*.css")
	if err != nil {
		return nil, fmt.Errorf("io: %w", err)
	}
	outPath.Close()
	defer os.Remove(outPath.Name())

	args := []string{srcPath, outPath.Name()}
	if rc.Minify.ShouldMinify(rc.Profile) && !d.NoMinify {
		args = append(args, "--style=compressed")
	}

	if err := tooling.Run(ctx, tooling.Invocation{
		Tool: tooling.ToolSassCompiler,
		Path: res.Path,
		Args: args,
	}); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outPath.Name())
	if err != nil {
		return nil, fmt.Errorf("io: reading sass output: %w", err)
	}

	relPath := targetRelPath(d, "style.css")

	if d.Inline {
		return &pipeline.PipelineOutput{
			Patch: pipeline.HTMLPatch{
				Anchor: d.Anchor,
				Nodes:  []*html.Node{styleNode(string(data))},
			},
		}, nil
	}

	art, err := stageBytes(rc, relPath, data, true, d.Integrity)
	if err != nil {
		return nil, err
	}
	return &pipeline.PipelineOutput{
		Artifacts: []pipeline.Artifact{art},
		Patch: pipeline.HTMLPatch{
			Anchor: d.Anchor,
			Nodes:  []*html.Node{linkNode("stylesheet", art.PublicPath, art.Integrity)},
		},
	}, nil
}
