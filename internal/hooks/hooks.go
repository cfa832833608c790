// Package hooks runs the user-configured pre_build/build/post_build
// subprocesses around a build, following the same subprocess-invocation
// shape as internal/tooling.Run (stream stderr, capture exit code, wrap a
// nonzero exit in a typed error).
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/jmylchreest/trunkgo/internal/config"
)

// Env carries the environment variables every hook receives, per the
// documented hook contract.
type Env struct {
	Profile    string // "debug" or "release"
	HTMLFile   string
	SourceDir  string
	StagingDir string
	DistDir    string
	PublicURL  string
}

func (e Env) vars() []string {
	return []string{
		"TRUNK_PROFILE=" + e.Profile,
		"TRUNK_HTML_FILE=" + e.HTMLFile,
		"TRUNK_SOURCE_DIR=" + e.SourceDir,
		"TRUNK_STAGING_DIR=" + e.StagingDir,
		"TRUNK_DIST_DIR=" + e.DistDir,
		"TRUNK_PUBLIC_URL=" + e.PublicURL,
	}
}

// FailedError reports a hook subprocess that exited nonzero.
type FailedError struct {
	Stage    string
	Command  []string
	ExitCode int
	Stderr   string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("hook-failed: %s hook %v exited %d: %s", e.Stage, e.Command, e.ExitCode, e.Stderr)
}

// Runner executes configured hooks at each build stage.
type Runner struct {
	logger *slog.Logger
}

// NewRunner constructs a Runner. logger must not be nil.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes, in declared order, every hook configured for stage. Any
// hook exiting nonzero aborts immediately and the error is returned;
// hooks after it for the same stage do not run.
func (r *Runner) Run(ctx context.Context, stage string, configured []config.Hook, env Env) error {
	for _, h := range configured {
		if h.Stage != stage {
			continue
		}
		command := h.CommandFor(runtime.GOOS)
		if len(command) == 0 {
			continue
		}
		r.logger.Debug("running hook", "stage", stage, "command", command)
		if err := r.runOne(ctx, stage, command, env); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, stage string, command []string, env Env) error {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = env.SourceDir
	cmd.Env = append(os.Environ(), env.vars()...)

	var stderrCapture bytes.Buffer
	cmd.Stderr = io.MultiWriter(&stderrCapture, os.Stderr)
	cmd.Stdout = os.Stdout

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		}
		return &FailedError{
			Stage:    stage,
			Command:  command,
			ExitCode: exitCode,
			Stderr:   stderrCapture.String(),
		}
	}
	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
