package tooling

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Invocation describes one subprocess call to a resolved tool.
type Invocation struct {
	Tool   Name
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the invocation, inheriting stdin and streaming stdout/
// stderr to the given writers (or discarding them if nil) as required by
// "stderr is surfaced to the user regardless of success". A nonzero exit
// becomes a ToolFailedError carrying the tool name, arguments, and exit
// code; all of stderr is captured into the error regardless of whether
// the caller also streamed it live.
func Run(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = os.Stdin
	if len(inv.Env) > 0 {
		cmd.Env = append(cmd.Env, inv.Env...)
	}

	var stderrCapture bytes.Buffer
	stderrWriters := []io.Writer{&stderrCapture}
	if inv.Stderr != nil {
		stderrWriters = append(stderrWriters, inv.Stderr)
	}
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	if inv.Stdout != nil {
		cmd.Stdout = inv.Stdout
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		exitCode := -1
		if ok := asExitError(err, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		}
		return &ToolFailedError{
			Tool:     inv.Tool,
			Args:     inv.Args,
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

// CaptureOutput runs the invocation and returns its stdout as bytes, for
// tools whose machine-parseable message stream must be scanned (the rust
// pipeline's `--message-format=json` compiler output).
func CaptureOutput(ctx context.Context, inv Invocation) ([]byte, error) {
	var buf bytes.Buffer
	inv.Stdout = &buf
	if err := Run(ctx, inv); err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return buf.Bytes(), nil
}
