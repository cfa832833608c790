package tasks

import (
	"context"
	"os"

	"golang.org/x/net/html"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// IconTask implements the `icon` pipeline: copy, hash, and patch in a
// <link rel="icon">.
type IconTask struct {
	descriptor *pipeline.LinkDescriptor
}

// NewIconTask constructs the icon pipeline for d.
func NewIconTask(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
	return &IconTask{descriptor: d}, nil
}

func (t *IconTask) Kind() pipeline.DescriptorKind        { return pipeline.KindIcon }
func (t *IconTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *IconTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	relPath := targetRelPath(d, "favicon.ico")
	art, err := stageBytes(rc, relPath, data, true, d.Integrity)
	if err != nil {
		return nil, err
	}

	return &pipeline.PipelineOutput{
		Artifacts: []pipeline.Artifact{art},
		Patch: pipeline.HTMLPatch{
			Anchor: d.Anchor,
			Nodes:  []*html.Node{linkNode("icon", art.PublicPath, art.Integrity)},
		},
	}, nil
}
