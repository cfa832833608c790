// Package stage orchestrates a build's staging directory: it gives each
// build run a scratch directory to write artifacts into, then promotes
// that directory atomically into the public dist directory, adapting the
// teacher's storage.Sandbox whole-directory publish for "one dist
// directory per project" instead of "one sandbox per proxy session".
package stage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
	"github.com/jmylchreest/trunkgo/internal/storage"
)

// entryHTMLName is the filename StageHTML writes the finalized HTML under
// when New is given an empty entry HTML filename.
const entryHTMLName = "index.html"

// Area owns the lifecycle of one project's dist directory: staging a
// build's output in isolation, then swapping it into place only once the
// whole tree is ready.
type Area struct {
	sandbox   *storage.Sandbox
	distName  string
	entryName string
}

// New creates a staging Area rooted at distDir, publishing under the given
// entry HTML filename (e.g. "index.html").
func New(distDir, entryHTMLFilename string) (*Area, error) {
	parent := filepath.Dir(distDir)
	if parent == "." || parent == "" {
		parent = "."
	}
	sandbox, err := storage.NewSandbox(parent)
	if err != nil {
		return nil, fmt.Errorf("creating dist sandbox: %w", err)
	}
	if entryHTMLFilename == "" {
		entryHTMLFilename = entryHTMLName
	}
	return &Area{sandbox: sandbox, distName: filepath.Base(distDir), entryName: entryHTMLFilename}, nil
}

// NewStagingDir allocates a fresh scratch directory for one build run. The
// caller is responsible for pointing pipeline.RuntimeContext.StagingDir at
// it before running tasks.
func (a *Area) NewStagingDir() (string, error) {
	dir, err := os.MkdirTemp("", "trunkgo-stage-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// Discard removes a staging directory without publishing it, used when a
// build fails partway through.
func (a *Area) Discard(stagingDir string) {
	os.RemoveAll(stagingDir)
}

// StageHTML writes result's finalized HTML into the staging directory
// without promoting it. Split out from Publish so callers can run
// post_build hooks against the staged tree before it goes live.
func (a *Area) StageHTML(stagingDir string, result *pipeline.Result) error {
	htmlPath := filepath.Join(stagingDir, a.entryName)
	if err := os.WriteFile(htmlPath, result.HTML, 0644); err != nil {
		return fmt.Errorf("writing staged entry html: %w", err)
	}
	return nil
}

// Swap atomically promotes stagingDir into dist, replacing whatever was
// there before. On success the staging directory no longer exists at its
// original path (it has been renamed into dist). If it cannot be moved
// from its path it is left in place and must be cleaned up by the caller;
// a failure after it has been moved removes it.
func (a *Area) Swap(stagingDir string) error {
	if err := a.sandbox.PublishDir(stagingDir, a.distName); err != nil {
		return fmt.Errorf("publishing staged build: %w", err)
	}
	return nil
}

// Publish is StageHTML followed by Swap, for callers with no post_build
// hooks to run in between.
func (a *Area) Publish(stagingDir string, result *pipeline.Result) error {
	if err := a.StageHTML(stagingDir, result); err != nil {
		return err
	}
	return a.Swap(stagingDir)
}

// DistDir returns the absolute path dist is published to.
func (a *Area) DistDir() string {
	return filepath.Join(a.sandbox.BaseDir(), a.distName)
}
