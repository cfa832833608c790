package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validateTargetPath enforces data-target-path's documented contract:
// relative only, no ".." segments. It mirrors the traversal check in
// storage.Sandbox.ResolvePath, applied here before a staging path is ever
// constructed so a malicious or mistaken descriptor fails fast with a
// descriptor-invalid error instead of an opaque io error deep in a task.
func validateTargetPath(p string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("data-target-path must be relative: %s", p)
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("data-target-path must not escape the staging directory: %s", p)
	}
	return nil
}
