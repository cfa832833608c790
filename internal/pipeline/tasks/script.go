package tasks

import (
	"context"
	"os"

	"golang.org/x/net/html"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// ScriptTask implements the `script` pipeline: copy the referenced script,
// optionally minify, hash, and rewrite the original <script> tag with the
// staged URL and integrity attribute.
type ScriptTask struct {
	descriptor *pipeline.LinkDescriptor
}

// NewScriptTask constructs the script pipeline for d.
func NewScriptTask(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
	return &ScriptTask{descriptor: d}, nil
}

func (t *ScriptTask) Kind() pipeline.DescriptorKind        { return pipeline.KindScript }
func (t *ScriptTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *ScriptTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	if rc.Minify.ShouldMinify(rc.Profile) && !d.NoMinify {
		if minified, err := minifyJS(data); err == nil {
			data = minified
		}
	}

	relPath := targetRelPath(d, "script.js")
	art, err := stageBytes(rc, relPath, data, true, d.Integrity)
	if err != nil {
		return nil, err
	}

	return &pipeline.PipelineOutput{
		Artifacts: []pipeline.Artifact{art},
		Patch: pipeline.HTMLPatch{
			Anchor: d.Anchor,
			Nodes:  []*html.Node{scriptNodeSrc(art.PublicPath, d.InlineType, art.Integrity)},
		},
	}, nil
}
