// Package tooling resolves, downloads, caches, and invokes the external
// toolchains a build needs: the WebAssembly compiler's bindings generator,
// the wasm optimizer, the sass compiler, and the tailwind CLI. It is
// grounded on the teacher's ffmpeg binary-detection and command-builder
// machinery, generalized from one fixed binary to an arbitrary
// ToolDescriptor table.
package tooling

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"
)

// Name identifies a required external program.
type Name string

// Recognized tool names.
const (
	ToolBindingsGenerator Name = "bindings-generator"
	ToolOptimizer         Name = "optimizer"
	ToolSassCompiler      Name = "sass-compiler"
	ToolTailwindCLI       Name = "tailwind-cli"
)

// Descriptor identifies one required external program.
type Descriptor struct {
	Name Name
	// BinaryName is the literal executable name to look up on PATH and to
	// expect inside a downloaded archive (e.g. "wasm-bindgen"). Falls back
	// to string(Name) when empty, but every concrete descriptor should set
	// it explicitly since Name is an abstract category, not a filename.
	BinaryName          string
	VersionConstraint   string
	Platform            string
	ExpectedPath        string
	Checksum            string
	DownloadURLTemplate string
	// VersionArgs is the flag that makes the binary print its version,
	// almost always []string{"--version"}.
	VersionArgs  []string
	VersionRegex *regexp.Regexp
}

// binaryName returns d.BinaryName, falling back to the abstract Name.
func (d Descriptor) binaryName() string {
	if d.BinaryName != "" {
		return d.BinaryName
	}
	return string(d.Name)
}

// Resolution is a resolved, invocation-ready tool.
type Resolution struct {
	Path    string
	Version string
}

var errVersionRegexRequired = fmt.Errorf("tool descriptor requires a VersionRegex to parse --version output")

// Resolver locates tool binaries, downloading and unpacking them into a
// cache directory when not found on PATH, with single-flight
// deduplication across concurrent callers resolving the same tool and
// version constraint.
type Resolver struct {
	logger   *slog.Logger
	cacheDir string
	offline  bool
	client   *Downloader

	group singleflight.Group

	mu       sync.RWMutex
	resolved map[string]Resolution
}

// NewResolver constructs a Resolver. cacheDir holds downloaded archives
// and unpacked binaries; it is created on first use.
func NewResolver(logger *slog.Logger, cacheDir string, offline bool, downloader *Downloader) *Resolver {
	return &Resolver{
		logger:   logger,
		cacheDir: cacheDir,
		offline:  offline,
		client:   downloader,
		resolved: make(map[string]Resolution),
	}
}

// Resolve returns an invocation-ready path and version for d, memoized for
// the process's lifetime per spec.md's "record the resolved path and
// version for the current process's lifetime" (step 4). Concurrent callers
// for the same name+constraint share one resolution.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor) (Resolution, error) {
	key := string(d.Name) + "@" + d.VersionConstraint

	r.mu.RLock()
	if res, ok := r.resolved[key]; ok {
		r.mu.RUnlock()
		return res, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		res, err := r.resolveOnce(ctx, d)
		if err != nil {
			return Resolution{}, err
		}
		r.mu.Lock()
		r.resolved[key] = res
		r.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

func (r *Resolver) resolveOnce(ctx context.Context, d Descriptor) (Resolution, error) {
	if d.VersionRegex == nil {
		return Resolution{}, errVersionRegexRequired
	}

	// Step 2: PATH lookup with matching version.
	if path, version, ok := r.detectOnPath(ctx, d); ok {
		r.logger.Debug("tool resolved from PATH", "tool", d.Name, "path", path, "version", version)
		return Resolution{Path: path, Version: version}, nil
	}

	if r.offline {
		return Resolution{}, &OfflineToolMissingError{Tool: d.Name}
	}

	// Step 3: download, verify, unpack.
	path, version, err := r.client.FetchAndUnpack(ctx, r.cacheDir, d)
	if err != nil {
		return Resolution{}, &ToolMissingError{Tool: d.Name, Err: err}
	}
	r.logger.Info("tool downloaded", "tool", d.Name, "path", path, "version", version)
	return Resolution{Path: path, Version: version}, nil
}

func (r *Resolver) detectOnPath(ctx context.Context, d Descriptor) (path, version string, ok bool) {
	candidate := d.binaryName()
	p, err := exec.LookPath(candidate)
	if err != nil {
		return "", "", false
	}

	out, err := exec.CommandContext(ctx, p, d.VersionArgs...).CombinedOutput()
	if err != nil {
		return "", "", false
	}

	match := d.VersionRegex.FindStringSubmatch(string(out))
	if match == nil || len(match) < 2 {
		return "", "", false
	}
	detected := match[1]

	if d.VersionConstraint != "" {
		constraint, err := semver.NewConstraint(d.VersionConstraint)
		if err != nil {
			return "", "", false
		}
		sv, err := semver.NewVersion(detected)
		if err != nil || !constraint.Check(sv) {
			return "", "", false
		}
	}

	return p, detected, true
}
