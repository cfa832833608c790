package tasks

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// CopyDirTask implements `copy-dir`: mirror the source directory's
// contents, byte-for-byte, under the target path. No hashing, no HTML
// patch. A symlink to a file is followed: the target's bytes are copied.
// filepath.Walk does not descend into a symlinked directory; copying such
// an entry fails, and so does the task.
type CopyDirTask struct {
	descriptor *pipeline.LinkDescriptor
}

// NewCopyDirTask constructs the copy-dir pipeline for d.
func NewCopyDirTask(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
	return &CopyDirTask{descriptor: d}, nil
}

func (t *CopyDirTask) Kind() pipeline.DescriptorKind        { return pipeline.KindCopyDir }
func (t *CopyDirTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *CopyDirTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor
	srcRoot := resolveSource(rc, d.Href)

	info, err := os.Stat(srcRoot)
	if err != nil || !info.IsDir() {
		return nil, &pipeline.SourceMissingError{Path: d.Href}
	}

	targetRoot := d.TargetPath
	var artifacts []pipeline.Artifact

	err = filepath.Walk(srcRoot, func(walkPath string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fi.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcRoot, walkPath)
		if err != nil {
			return err
		}
		relPath := filepath.ToSlash(rel)
		if targetRoot != "" {
			relPath = targetRoot + "/" + relPath
		}

		dstPath := filepath.Join(rc.StagingDir, filepath.FromSlash(relPath))
		size, err := copyStream(dstPath, walkPath)
		if err != nil {
			return err
		}

		artifacts = append(artifacts, pipeline.Artifact{
			StagingPath: dstPath,
			PublicPath:  path.Join(publicBase(rc.PublicURL), relPath),
			Size:        size,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &pipeline.PipelineOutput{Artifacts: artifacts}, nil
}
