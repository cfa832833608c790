package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// InlineTask implements the `inline` pipeline: the referenced file's
// content is emitted directly into the HTML patch, wrapped according to
// its inferred or declared type. No artifact is staged.
type InlineTask struct {
	descriptor *pipeline.LinkDescriptor
}

// NewInlineTask constructs the inline pipeline for d.
func NewInlineTask(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
	return &InlineTask{descriptor: d}, nil
}

func (t *InlineTask) Kind() pipeline.DescriptorKind        { return pipeline.KindInline }
func (t *InlineTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *InlineTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	kind := d.InlineType
	if kind == "" {
		kind = inferKindFromExt(d.Href)
	}

	node := inlineNode(kind, string(data))

	return &pipeline.PipelineOutput{
		Patch: pipeline.HTMLPatch{
			Anchor: d.Anchor,
			Nodes:  []*html.Node{node},
		},
	}, nil
}

// inlineNode wraps body per the inline pipeline's type-inference contract:
// CSS in <style>, JS in <script>, ES modules in <script type="module">,
// and html/svg verbatim via a raw text fragment.
func inlineNode(kind, body string) *html.Node {
	switch kind {
	case "css":
		return styleNode(body)
	case "js":
		return scriptNodeInline(body, "")
	case "mjs", "module":
		return scriptNodeInline(body, "module")
	default:
		return &html.Node{Type: html.RawNode, Data: body}
	}
}

func inferKindFromExt(href string) string {
	switch strings.ToLower(filepath.Ext(href)) {
	case ".css":
		return "css"
	case ".mjs":
		return "mjs"
	case ".js":
		return "js"
	case ".svg":
		return "svg"
	case ".html":
		return "html"
	default:
		return "html"
	}
}
