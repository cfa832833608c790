package tooling

import "fmt"

// ToolMissingError reports that a required tool could not be resolved
// from PATH or by download.
type ToolMissingError struct {
	Tool Name
	Err  error
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("tool-missing: %s: %v", e.Tool, e.Err)
}

func (e *ToolMissingError) Unwrap() error { return e.Err }

// OfflineToolMissingError is the offline-mode variant: the tool is not on
// PATH and downloading is forbidden.
type OfflineToolMissingError struct {
	Tool Name
}

func (e *OfflineToolMissingError) Error() string {
	return fmt.Sprintf("offline-tool-missing: %s (not found on PATH and offline mode forbids downloading)", e.Tool)
}

// ToolFailedError reports a tool invocation that exited nonzero.
type ToolFailedError struct {
	Tool     Name
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ToolFailedError) Error() string {
	return fmt.Sprintf("tool-failed: %s %v exited %d: %s", e.Tool, e.Args, e.ExitCode, e.Stderr)
}
