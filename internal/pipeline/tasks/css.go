package tasks

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	"golang.org/x/net/html"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// CSSTask implements the `css` pipeline: read, optionally minify, stage,
// hash, and patch in a stylesheet link.
type CSSTask struct {
	descriptor *pipeline.LinkDescriptor
}

// NewCSSTask constructs the css pipeline for d.
func NewCSSTask(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
	return &CSSTask{descriptor: d}, nil
}

func (t *CSSTask) Kind() pipeline.DescriptorKind        { return pipeline.KindCSS }
func (t *CSSTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *CSSTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	if rc.Minify.ShouldMinify(rc.Profile) && !d.NoMinify {
		data, err = minifyCSS(data)
		if err != nil {
			return nil, fmt.Errorf("io: minifying css: %w", err)
		}
	}

	relPath := targetRelPath(d, "style.css")
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

func minifyCSS(data []byte) ([]byte, error) {
	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	var buf bytes.Buffer
	if err := m.Minify("text/css", &buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// targetRelPath resolves the staging-relative path for a descriptor: an
// explicit data-target-name wins, otherwise the caller's fixed fallback
// name (e.g. "style.css") is used; either is placed under data-target-path
// when set. The source href's file name is not used.
func targetRelPath(d *pipeline.LinkDescriptor, fallback string) string {
	if d.TargetName != "" {
		if d.TargetPath != "" {
			return d.TargetPath + "/" + d.TargetName
		}
		return d.TargetName
	}
	if d.TargetPath != "" {
		return d.TargetPath + "/" + fallback
	}
	return fallback
}
