package tasks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"golang.org/x/net/html"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
	"github.com/jmylchreest/trunkgo/internal/tooling"
)

const wasmTarget = "wasm32-unknown-unknown"

var (
	bindgenVersionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)
	wasmOptVersionRegex = regexp.MustCompile(`(\d+)`)
)

// BindgenDescriptor is the tool descriptor for the bindings generator.
var BindgenDescriptor = tooling.Descriptor{
	Name:         tooling.ToolBindingsGenerator,
	BinaryName:   "wasm-bindgen",
	VersionArgs:  []string{"--version"},
	VersionRegex: bindgenVersionRegex,
}

// WasmOptDescriptor is the tool descriptor for the wasm optimizer.
var WasmOptDescriptor = tooling.Descriptor{
	Name:         tooling.ToolOptimizer,
	BinaryName:   "wasm-opt",
	VersionArgs:  []string{"--version"},
	VersionRegex: wasmOptVersionRegex,
}

// cargoArtifactMessage is the subset of `cargo build --message-format=json`
// we care about: the compiler-artifact record naming the produced wasm.
type cargoArtifactMessage struct {
	Reason   string   `json:"reason"`
	Target   cargoTarget `json:"target"`
	Filenames []string `json:"filenames"`
}

type cargoTarget struct {
	Name     string   `json:"name"`
	Kind     []string `json:"kind"`
}

// RustTask implements the `rust` pipeline: build the crate to wasm, run the
// bindings generator, optionally optimize, stage and hash the outputs, and
// patch the entry HTML with a loader script (type=main) or stage silently
// (type=worker).
type RustTask struct {
	descriptor *pipeline.LinkDescriptor
	resolver   *tooling.Resolver
	logger     *slog.Logger
}

// NewRustTaskFactory returns a TaskFactory bound to resolver.
func NewRustTaskFactory(resolver *tooling.Resolver, logger *slog.Logger) pipeline.TaskFactory {
	return func(d *pipeline.LinkDescriptor) (pipeline.Task, error) {
		return &RustTask{descriptor: d, resolver: resolver, logger: logger}, nil
	}
}

func (t *RustTask) Kind() pipeline.DescriptorKind        { return pipeline.KindRust }
func (t *RustTask) Descriptor() *pipeline.LinkDescriptor { return t.descriptor }

func (t *RustTask) Execute(ctx context.Context, rc *pipeline.RuntimeContext) (*pipeline.PipelineOutput, error) {
	d := t.descriptor

	manifestPath, err := t.resolveManifest(rc)
	if err != nil {
		return nil, err
	}

	if d.KeepDebug && d.WasmOptLevel != "" && d.WasmOptLevel != "0" {
		t.logger.Warn("data-keep-debug conflicts with a nonzero wasm-opt level; debug info may still be stripped",
			"manifest", manifestPath, "wasm_opt_level", d.WasmOptLevel)
	}

	wasmPath, err := t.buildWasm(ctx, manifestPath, rc)
	if err != nil {
		return nil, err
	}

	loaderJS, processedWasm, tsBindings, err := t.runBindgen(ctx, wasmPath, rc)
	if err != nil {
		return nil, err
	}

	if shouldOptimize(d, rc) {
		processedWasm, err = t.runOptimizer(ctx, processedWasm, d)
		if err != nil {
			return nil, err
		}
	}

	var artifacts []pipeline.Artifact

	wasmRel := targetRelPath(d, bgWasmName(d))
	wasmArt, err := stageBytes(rc, wasmRel, processedWasm, true, d.Integrity)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, wasmArt)

	loaderRel := targetRelPath(d, loaderName(d))
	loaderArt, err := stageBytes(rc, loaderRel, loaderJS, true, d.Integrity)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, loaderArt)

	if d.TypeScript && tsBindings != nil {
		tsRel := targetRelPath(d, loaderTSName(d))
		tsArt, err := stageBytes(rc, tsRel, tsBindings, false, pipeline.IntegrityNone)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, tsArt)
	}

	if d.LoaderShim {
		shim := workerShim(loaderArt.PublicPath)
		shimRel := targetRelPath(d, shimName(d))
		shimArt, err := stageBytes(rc, shimRel, []byte(shim), true, pipeline.IntegrityNone)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, shimArt)
	}

	if d.BinType == pipeline.RustTypeWorker {
		return &pipeline.PipelineOutput{Artifacts: artifacts}, nil
	}

	patch := pipeline.HTMLPatch{
		Anchor: d.Anchor,
		Nodes:  []*html.Node{mainModuleScriptNode(loaderArt, d)},
		HeadInject: []*html.Node{
			linkNode("modulepreload", loaderArt.PublicPath, loaderArt.Integrity),
			preloadWasmNode(wasmArt),
		},
	}

	return &pipeline.PipelineOutput{Artifacts: artifacts, Patch: patch}, nil
}

// resolveManifest finds Cargo.toml: an explicit href wins, otherwise the
// nearest manifest walking up from the source directory.
func (t *RustTask) resolveManifest(rc *pipeline.RuntimeContext) (string, error) {
	d := t.descriptor
	if d.Href != "" {
		p := resolveSource(rc, d.Href)
		if _, err := os.Stat(p); err != nil {
			return "", &pipeline.SourceMissingError{Path: d.Href}
		}
		return p, nil
	}

	dir := rc.SourceDir
	for {
		candidate := filepath.Join(dir, "Cargo.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", &pipeline.SourceMissingError{Path: "Cargo.toml"}
}

func (t *RustTask) buildWasm(ctx context.Context, manifestPath string, rc *pipeline.RuntimeContext) (string, error) {
	d := t.descriptor

	cargoPath, err := exec.LookPath("cargo")
	if err != nil {
		return "", &tooling.ToolMissingError{Tool: "cargo", Err: err}
	}

	args := []string{"build", "--manifest-path", manifestPath, "--target", wasmTarget, "--message-format=json"}

	release := rc.Profile == pipeline.ProfileRelease
	switch d.CargoProfile {
	case "release":
		release = true
	case "dev":
		release = false
	case "":
		// inherit rc.Profile
	default:
		args = append(args, "--profile", d.CargoProfile)
	}
	if release && d.CargoProfile == "" {
		args = append(args, "--release")
	}

	if d.CargoAllFeatures {
		args = append(args, "--all-features")
	} else if len(d.CargoFeatures) > 0 {
		args = append(args, "--features", joinComma(d.CargoFeatures))
	}
	if d.CargoNoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if d.BinName != "" {
		args = append(args, "--bin", d.BinName)
	}

	out, err := tooling.CaptureOutput(ctx, tooling.Invocation{
		Tool: "cargo",
		Path: cargoPath,
		Args: args,
	})
	if err != nil {
		return "", err
	}

	return scanForWasmArtifact(out, d.BinName)
}

// scanForWasmArtifact reads the compiler's JSON message stream line by line
// and returns the filename of the compiler-artifact record matching
// wantedBin, or the single bin/cdylib artifact when wantedBin is empty and
// there's no ambiguity. No heuristic filename matching is performed.
func scanForWasmArtifact(stream []byte, wantedBin string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var matched string
	var candidates []cargoArtifactMessage

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var msg cargoArtifactMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Reason != "compiler-artifact" {
			continue
		}
		if !isWasmKind(msg.Target.Kind) {
			continue
		}
		if wantedBin != "" && msg.Target.Name != wantedBin {
			continue
		}
		candidates = append(candidates, msg)
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("io: no matching wasm artifact in compiler output (bin=%q)", wantedBin)
	}
	if wantedBin == "" && len(candidates) > 1 {
		return "", fmt.Errorf("io: multiple wasm binaries produced; data-bin must disambiguate")
	}

	chosen := candidates[len(candidates)-1]
	for _, f := range chosen.Filenames {
		if filepath.Ext(f) == ".wasm" {
			matched = f
			break
		}
	}
	if matched == "" {
		return "", fmt.Errorf("io: compiler-artifact record for %q carries no .wasm filename", chosen.Target.Name)
	}
	return matched, nil
}

func isWasmKind(kinds []string) bool {
	for _, k := range kinds {
		if k == "bin" || k == "cdylib" {
			return true
		}
	}
	return false
}

func (t *RustTask) runBindgen(ctx context.Context, wasmPath string, rc *pipeline.RuntimeContext) (loaderJS, processedWasm, tsBindings []byte, err error) {
	d := t.descriptor
	res, err := t.resolver.Resolve(ctx, BindgenDescriptor)
	if err != nil {
		return nil, nil, nil, err
	}

	outDir, err := os.MkdirTemp("", "trunk-bindgen-*")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("io: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{wasmPath, "--out-dir", outDir, "--out-name", "trunk-bindgen", "--target", bindgenTarget(d), "--no-typescript"}
	if d.TypeScript {
		args[len(args)-1] = "--typescript"
	}
	if d.ReferenceTypes {
		args = append(args, "--reference-types")
	}
	if d.WeakRefs {
		args = append(args, "--weak-refs")
	}
	if d.NoDemangle {
		args = append(args, "--no-demangle")
	}
	if d.KeepDebug {
		args = append(args, "--keep-debug")
	}

	if err := tooling.Run(ctx, tooling.Invocation{
		Tool: tooling.ToolBindingsGenerator,
		Path: res.Path,
		Args: args,
	}); err != nil {
		return nil, nil, nil, err
	}

	loaderJS, err = os.ReadFile(filepath.Join(outDir, "trunk-bindgen.js"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("io: reading bindgen loader: %w", err)
	}
	processedWasm, err = os.ReadFile(filepath.Join(outDir, "trunk-bindgen_bg.wasm"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("io: reading bindgen wasm: %w", err)
	}
	if d.TypeScript {
		tsBindings, _ = os.ReadFile(filepath.Join(outDir, "trunk-bindgen.d.ts"))
	}
	return loaderJS, processedWasm, tsBindings, nil
}

func bindgenTarget(d *pipeline.LinkDescriptor) string {
	if d.BindgenTarget != "" {
		return d.BindgenTarget
	}
	if d.BinType == pipeline.RustTypeWorker {
		return "no-modules"
	}
	return "web"
}

func shouldOptimize(d *pipeline.LinkDescriptor, rc *pipeline.RuntimeContext) bool {
	if d.WasmOptLevel != "" {
		return d.WasmOptLevel != "0"
	}
	return rc.Profile == pipeline.ProfileRelease
}

func (t *RustTask) runOptimizer(ctx context.Context, wasm []byte, d *pipeline.LinkDescriptor) ([]byte, error) {
	res, err := t.resolver.Resolve(ctx, WasmOptDescriptor)
	if err != nil {
		return nil, err
	}

	inFile, err := os.CreateTemp("", "trunk-wasm-opt-in-*.wasm")
	if err != nil {
		return nil, fmt.Errorf("io: %w", err)
	}
	defer os.Remove(inFile.Name())
	if _, err := inFile.Write(wasm); err != nil {
		inFile.Close()
		return nil, fmt.Errorf("io: %w", err)
	}
	inFile.Close()

	outFile, err := os.CreateTemp("", "trunk-wasm-opt-out-*.wasm")
	if err != nil {
		return nil, fmt.Errorf("io: %w", err)
	}
	outFile.Close()
	defer os.Remove(outFile.Name())

	level := d.WasmOptLevel
	if level == "" {
		level = "s"
	}
	args := append([]string{"-O" + level, inFile.Name(), "-o", outFile.Name()}, d.WasmOptParams...)

	if err := tooling.Run(ctx, tooling.Invocation{
		Tool: tooling.ToolOptimizer,
		Path: res.Path,
		Args: args,
	}); err != nil {
		return nil, err
	}

	return os.ReadFile(outFile.Name())
}

func bgWasmName(d *pipeline.LinkDescriptor) string {
	if d.BinName != "" {
		return d.BinName + "_bg.wasm"
	}
	return "app_bg.wasm"
}

func loaderName(d *pipeline.LinkDescriptor) string {
	if d.BinName != "" {
		return d.BinName + ".js"
	}
	return "app.js"
}

func loaderTSName(d *pipeline.LinkDescriptor) string {
	if d.BinName != "" {
		return d.BinName + ".d.ts"
	}
	return "app.d.ts"
}

func shimName(d *pipeline.LinkDescriptor) string {
	if d.BinName != "" {
		return d.BinName + "-shim.js"
	}
	return "app-shim.js"
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// mainModuleScriptNode builds the type=main module script instantiating the
// wasm module, per the configured initializer/import-name overrides.
func mainModuleScriptNode(loader pipeline.Artifact, d *pipeline.LinkDescriptor) *html.Node {
	importName := d.WasmImportName
	if importName == "" {
		importName = "__trunkInit"
	}
	initializer := d.Initializer
	if initializer == "" {
		initializer = "init"
	}

	body := fmt.Sprintf(
		"import %s from '%s';\n%s();\n",
		initializer, loader.PublicPath, initializer,
	)
	if d.WasmNoImport {
		body = fmt.Sprintf("window.%s = function() { return import('%s').then(m => m.%s()); };\n",
			importName, loader.PublicPath, initializer)
	}

	n := scriptNodeInline(body, "module")
	if d.CrossOrigin != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "crossorigin", Val: d.CrossOrigin})
	}
	return n
}

func preloadWasmNode(wasm pipeline.Artifact) *html.Node {
	attrs := map[string]string{"rel": "preload", "href": wasm.PublicPath, "as": "fetch"}
	if wasm.Integrity != "" {
		attrs["integrity"] = wasm.Integrity
		attrs["crossorigin"] = "anonymous"
	}
	return elem("link", attrs)
}

// workerShim bootstraps a worker's own scope around the no-modules loader,
// for `data-loader-shim=true` per the worker-pipeline contract.
func workerShim(loaderPublicPath string) string {
	return fmt.Sprintf("importScripts('%s');\nwasm_bindgen(self.location.href.replace(/-shim\\.js$/, '_bg.wasm'));\n", loaderPublicPath)
}
