package tasks

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// CopyFileTask implements `copy-file`: stage exactly the named file,
// byte-for-byte, at its target path. No hashing, no HTML patch.
type CopyFileTask struct {
	descriptor *pipeline.LinkDescriptor
}

// NewCopyFileTask constructs the copy-file pipeline for d.
func NewCopyFileTask(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
	return &CopyFileTask{descriptor: d}, nil
}

func (t *CopyFileTask) Kind() pipeline.DescriptorKind        { return pipeline.KindCopyFile }
func (t *CopyFileTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *CopyFileTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcPath := resolveSource(rc, d.Href)

	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	relPath := targetRelPath(d, filepath.Base(d.Href))
	dstPath := filepath.Join(rc.StagingDir, filepath.FromSlash(relPath))

	size, err := copyStream(dstPath, srcPath)
	if err != nil {
		return nil, err
	}
	_ = info

	return &pipeline.PipelineOutput{
		Artifacts: []pipeline.Artifact{{
			StagingPath: dstPath,
			PublicPath:  path.Join(publicBase(rc.PublicURL), filepath.ToSlash(relPath)),
			Size:        size,
		}},
	}, nil
}
