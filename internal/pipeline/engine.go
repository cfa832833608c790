package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one full build.
type Result struct {
	Artifacts []Artifact
	HTML      []byte
	Duration  time.Duration
	TaskResults map[DescriptorKind]int // count of tasks run per kind, for logging
}

// Engine drives planned tasks to completion and assembles the finished
// build. It replaces the teacher's sequential stage loop with concurrent
// fan-out: every task runs in its own goroutine under an errgroup, and the
// only join point is HTML finalization, per the single-cooperative-
// scheduler model.
type Engine struct {
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]*runningBuild
}

// runningBuild tags one in-flight build's cancel func with a unique token,
// so a later build can tell whether it is still the registered one without
// comparing func values (which Go only allows against nil).
type runningBuild struct {
	cancel context.CancelFunc
}

// NewEngine constructs an Engine. logger must not be nil.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger:  logger,
		running: make(map[string]*runningBuild),
	}
}

// taskOutcome pairs a task's result with the descriptor it came from, so
// finalize can reorder by SourceOrder after the concurrent phase completes.
type taskOutcome struct {
	descriptor *LinkDescriptor
	output     *PipelineOutput
}

// Run executes tasks concurrently, cancelling all siblings as soon as any
// one fails, then assembles the final HTML from skeleton plus patches in
// source order. entryKey identifies the entry HTML for the single-flight
// guard: only one build per entryKey may be in flight at a time; a second
// call for the same key cancels the first (the caller — the watcher — is
// responsible for coalescing triggers before calling Run again).
//
// preFinalize, if given, runs under the same errgroup as the asset tasks —
// concurrently with them, cancelling them on failure like any other
// sibling — and is guaranteed to complete before HTML finalization begins.
// It exists so callers can run "build"-stage hooks alongside asset tasks
// per the documented hook contract.
func (e *Engine) Run(ctx context.Context, entryKey string, skeleton *html.Node, tasks []Task, rc *RuntimeContext, preFinalize ...func(context.Context) error) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	self := &runningBuild{cancel: cancel}
	e.supersede(entryKey, self)
	defer e.clearIfCurrent(entryKey, self)

	group, gctx := errgroup.WithContext(ctx)
	outcomes := make([]taskOutcome, len(tasks))
	claimed := make(map[string]string)
	var claimMu sync.Mutex

	for i, t := range tasks {
		i, t := i, t
		group.Go(func() error {
			d := t.Descriptor()
			e.logger.DebugContext(gctx, "task starting", "kind", t.Kind(), "anchor", d.Anchor)
			out, err := t.Execute(gctx, rc)
			if err != nil {
				return &TaskError{Kind: t.Kind(), Anchor: d.Anchor, Err: err}
			}
			for _, art := range out.Artifacts {
				claimMu.Lock()
				if owner, ok := claimed[art.PublicPath]; ok {
					claimMu.Unlock()
					return &ArtifactCollisionError{Path: art.PublicPath, FirstTask: owner, SecondTask: string(t.Kind())}
				}
				claimed[art.PublicPath] = string(t.Kind())
				claimMu.Unlock()
			}
			outcomes[i] = taskOutcome{descriptor: d, output: out}
			e.logger.DebugContext(gctx, "task complete", "kind", t.Kind(), "anchor", d.Anchor)
			return nil
		})
	}

	for _, hook := range preFinalize {
		hook := hook
		group.Go(func() error {
			return hook(gctx)
		})
	}

	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrBuildCancelled, err)
		}
		return nil, err
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].descriptor.SourceOrder < outcomes[j].descriptor.SourceOrder
	})

	var artifacts []Artifact
	taskCounts := make(map[DescriptorKind]int)
	for _, o := range outcomes {
		artifacts = append(artifacts, o.output.Artifacts...)
		taskCounts[o.descriptor.Kind]++
	}

	finalHTML, err := applyPatches(skeleton, outcomes)
	if err != nil {
		return nil, fmt.Errorf("applying html patches: %w", err)
	}

	return &Result{
		Artifacts:   artifacts,
		HTML:        finalHTML,
		Duration:    time.Since(start),
		TaskResults: taskCounts,
	}, nil
}

// supersede cancels any build already running for entryKey and registers
// cancel as the new one — the generalization of the teacher's
// activeExecutions map from "per proxy ID" to "per entry HTML".
func (e *Engine) supersede(entryKey string, self *runningBuild) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.running[entryKey]; ok {
		prev.cancel()
	}
	e.running[entryKey] = self
}

func (e *Engine) clearIfCurrent(entryKey string, self *runningBuild) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Only clear if we are still the registered build; a superseding
	// build may already have overwritten the entry.
	if current, ok := e.running[entryKey]; ok && current == self {
		delete(e.running, entryKey)
	}
}
