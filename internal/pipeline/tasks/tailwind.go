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

var tailwindVersionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// TailwindDescriptor is the tool descriptor for the tailwind CLI.
var TailwindDescriptor = tooling.Descriptor{
	Name:         tooling.ToolTailwindCLI,
	BinaryName:   "tailwindcss",
	VersionArgs:  []string{"--help"},
	VersionRegex: tailwindVersionRegex,
}

// TailwindTask implements the `tailwind` pipeline: same contract as sass,
// invoking the tailwind CLI instead of the sass compiler.
type TailwindTask struct {
	descriptor *pipeline.LinkDescriptor
	resolver   *tooling.Resolver
	logger     *slog.Logger
}

// NewTailwindTaskFactory returns a TaskFactory bound to resolver.
func NewTailwindTaskFactory(resolver *tooling.Resolver, logger *slog.Logger) pipeline.TaskFactory {
	return func(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
		return &TailwindTask{descriptor: d, resolver: resolver, logger: logger}, nil
	}
}

func (t *TailwindTask) Kind() pipeline.DescriptorKind        { return pipeline.KindTailwind }
func (t *TailwindTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *TailwindTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)
	if _, err := os.Stat(srcPath); err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	res, err := t.resolver.Resolve(ctx, TailwindDescriptor)
	if err != nil {
		return nil, err
	}

	outFile, err := os.CreateTemp("", "trunk-tailwind-*.css")
	if err != nil {
		return nil, fmt.Errorf("io: %w", err)
	}
	outFile.Close()
	defer os.Remove(outFile.Name())

	args := []string{"-i", srcPath, "-o", outFile.Name()}
	if rc.Minify.ShouldMinify(rc.Profile) && !d.NoMinify {
		args = append(args, "--minify")
	}
	if d.ConfigPath != "" {
		args = append(args, "-c", d.ConfigPath)
	}

	if err := tooling.Run(ctx, tooling.Invocation{
		Tool: tooling.ToolTailwindCLI,
		Path: res.Path,
		Args: args,
	}); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outFile.Name())
	if err != nil {
		return nil, fmt.Errorf("io: reading tailwind output: %w", err)
	}

	if d.Inline {
		return &pipeline.PipelineOutput{
			Patch: pipeline.HTMLPatch{
				Anchor: d.Anchor,
				Nodes:  []*html.Node{styleNode(string(data))},
			},
		}, nil
	}

	relPath := targetRelPath(d, "tailwind.css")
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
