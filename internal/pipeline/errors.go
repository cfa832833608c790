package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that have no further structured context,
// mirroring the taxonomy in the error-handling design: config-invalid,
// html-parse, descriptor-invalid, source-missing, tool-missing,
// tool-failed, artifact-collision, io, network, build-cancelled.
var (
	ErrNoDescriptors     = errors.New("entry html declares no pipeline tasks")
	ErrBuildAlreadyRunning = errors.New("a build is already running for this entry html")
	ErrBuildCancelled    = errors.New("build cancelled by a superseding trigger")
)

// DescriptorError reports a malformed or conflicting LinkDescriptor:
// missing/invalid attributes, a traversing target path, or more than one
// rust+main link.
type DescriptorError struct {
	Anchor InsertionAnchor
	Reason string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor-invalid (anchor %d): %s", e.Anchor, e.Reason)
}

// SourceMissingError reports a referenced asset file that does not exist
// on disk and is not an absolute URL. Non-asset hyperlinks degrade this to
// a warning at the call site; declared pipelines treat it as fatal.
type SourceMissingError struct {
	Path string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("source-missing: %s", e.Path)
}

// ArtifactCollisionError reports two tasks claiming the same staging path.
type ArtifactCollisionError struct {
	Path      string
	FirstTask string
	SecondTask string
}

func (e *ArtifactCollisionError) Error() string {
	return fmt.Sprintf("artifact-collision: %s claimed by both %q and %q", e.Path, e.FirstTask, e.SecondTask)
}

// TaskError wraps a single task's failure with the descriptor it came
// from, so the engine can report which link failed without losing the
// underlying cause.
type TaskError struct {
	Kind   DescriptorKind
	Anchor InsertionAnchor
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (anchor %d): %v", e.Kind, e.Anchor, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
