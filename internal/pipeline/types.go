// Package pipeline plans and executes the concurrent build pipeline: it
// turns the link descriptors extracted from the entry HTML into tasks,
// runs them to completion, and assembles their artifacts and HTML patches
// into a finished build.
package pipeline

import (
	"golang.org/x/net/html"
)

// DescriptorKind identifies which asset pipeline a LinkDescriptor selects.
type DescriptorKind string

// Recognized descriptor kinds, matching the data-trunk `rel` vocabulary.
const (
	KindRust           DescriptorKind = "rust"
	KindSass           DescriptorKind = "sass"
	KindTailwind       DescriptorKind = "tailwind"
	KindCSS            DescriptorKind = "css"
	KindIcon           DescriptorKind = "icon"
	KindInline         DescriptorKind = "inline"
	KindCopyFile       DescriptorKind = "copy-file"
	KindCopyDir        DescriptorKind = "copy-dir"
	KindScript         DescriptorKind = "script"
	KindPublicURLBase  DescriptorKind = "trunk-public-url-base"
)

// RustBinaryType distinguishes the unique `main` wasm entry point from
// secondary worker bundles.
type RustBinaryType string

// Recognized data-type values for rust descriptors.
const (
	RustTypeMain   RustBinaryType = "main"
	RustTypeWorker RustBinaryType = "worker"
)

// IntegrityAlgorithm names a subresource-integrity digest algorithm, or
// "none" to opt out of SRI for a descriptor.
type IntegrityAlgorithm string

// Recognized data-integrity values.
const (
	IntegrityNone   IntegrityAlgorithm = "none"
	IntegritySHA256 IntegrityAlgorithm = "sha256"
	IntegritySHA384 IntegrityAlgorithm = "sha384"
	IntegritySHA512 IntegrityAlgorithm = "sha512"
)

// InsertionAnchor is the opaque identity of the DOM location a
// LinkDescriptor was extracted from. The rewriter replaces the original
// node with a sentinel comment carrying this ID, and later splices the
// task's HTML patch back in at the same position.
type InsertionAnchor uint64

// LinkDescriptor is a tagged record identifying one pipeline to run. Only
// the attributes relevant to Kind are populated; the rest are zero values.
type LinkDescriptor struct {
	Kind   DescriptorKind
	Anchor InsertionAnchor

	// SourceOrder is the descriptor's position among all descriptors in the
	// entry HTML, used to apply HTML patches deterministically.
	SourceOrder int

	Href       string
	TargetPath string
	TargetName string

	// Integrity selects the SRI algorithm; empty means "use the build
	// default" and IntegrityNone means an explicit opt-out.
	Integrity IntegrityAlgorithm
	NoMinify  bool
	Inline    bool
	// InlineType is the explicit `type` attribute; if empty it is inferred
	// from the file extension.
	InlineType string

	// Rust-specific fields.
	BinType              RustBinaryType
	BinName              string
	CargoFeatures        []string
	CargoNoDefaultFeatures bool
	CargoAllFeatures     bool
	CargoProfile         string
	WasmOptLevel         string
	WasmOptParams        []string
	KeepDebug            bool
	NoDemangle           bool
	ReferenceTypes       bool
	WeakRefs             bool
	TypeScript           bool
	BindgenTarget        string
	LoaderShim           bool
	CrossOrigin          string
	WasmNoImport         bool
	WasmImportName       string
	Initializer          string

	// CSS config-file override (data-config), passed to the tailwind CLI
	// as -c; the sass pipeline does not read it.
	ConfigPath string
}

// Validate checks descriptor-level invariants that do not require
// filesystem access (target-path traversal, conflicting cargo feature
// flags). It does not check cross-descriptor invariants such as rust/main
// uniqueness; the planner checks those.
func (d *LinkDescriptor) Validate() error {
	if d.TargetPath != "" {
		if err := validateTargetPath(d.TargetPath); err != nil {
			return &DescriptorError{Anchor: d.Anchor, Reason: err.Error()}
		}
	}
	if d.CargoAllFeatures && len(d.CargoFeatures) > 0 {
		return &DescriptorError{Anchor: d.Anchor, Reason: "data-cargo-all-features conflicts with data-cargo-features"}
	}
	return nil
}

// Artifact is a file produced into the staging directory.
type Artifact struct {
	// StagingPath is the absolute path the task wrote to.
	StagingPath string
	// PublicPath is the path relative to the public URL base, using
	// forward slashes regardless of host OS.
	PublicPath string
	// Hash is the first 16 hex characters of the output digest, empty if
	// the artifact is unhashed.
	Hash string
	// Integrity is the full `algorithm-base64digest` SRI string, empty if
	// not computed.
	Integrity string
	Size      int64
}

// HTMLPatch replaces a descriptor's insertion anchor with zero or more DOM
// nodes, or (for head-injected nodes such as preload links) appends nodes
// to <head> independent of any anchor.
type HTMLPatch struct {
	Anchor      InsertionAnchor
	Nodes       []*html.Node
	HeadInject  []*html.Node
	BodyInject  []*html.Node
}

// PipelineOutput is what a task returns on success.
type PipelineOutput struct {
	Artifacts []Artifact
	Patch     HTMLPatch
	// DependencyKey summarizes this task's inputs for incremental rebuild
	// decisions (unused by `build`/`watch` today but threaded through so a
	// future incremental planner has it available).
	DependencyKey string
}

// Profile selects the compiler/optimizer invocation profile.
type Profile string

// Recognized build profiles.
const (
	ProfileDebug   Profile = "debug"
	ProfileRelease Profile = "release"
)

// MinifyPolicy controls when output is minified.
type MinifyPolicy string

// Recognized minify policies.
const (
	MinifyNever     MinifyPolicy = "never"
	MinifyOnRelease MinifyPolicy = "on_release"
	MinifyAlways    MinifyPolicy = "always"
)

// ShouldMinify resolves the policy against the active profile.
func (m MinifyPolicy) ShouldMinify(profile Profile) bool {
	switch m {
	case MinifyAlways:
		return true
	case MinifyOnRelease:
		return profile == ProfileRelease
	default:
		return false
	}
}

// RuntimeContext carries the per-build configuration every task needs.
type RuntimeContext struct {
	SourceDir    string
	PublicURL    string
	StagingDir   string
	Profile      Profile
	Minify       MinifyPolicy
	Offline      bool
	Filehash     bool
	NoSRI        bool
}
