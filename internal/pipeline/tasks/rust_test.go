package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

func TestScanForWasmArtifact_PicksNamedBin(t *testing.T) {
	stream := []byte(`
{"reason":"compiler-artifact","target":{"name":"other","kind":["bin"]},"filenames":["/tmp/other.wasm"]}
{"reason":"compiler-artifact","target":{"name":"app","kind":["bin"]},"filenames":["/tmp/app.d","/tmp/app.wasm"]}
{"reason":"build-finished","success":true}
`)
	path, err := scanForWasmArtifact(stream, "app")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/app.wasm", path)
}

func TestScanForWasmArtifact_AmbiguousWithoutBinName(t *testing.T) {
	stream := []byte(`
{"reason":"compiler-artifact","target":{"name":"a","kind":["bin"]},"filenames":["/tmp/a.wasm"]}
{"reason":"compiler-artifact","target":{"name":"b","kind":["bin"]},"filenames":["/tmp/b.wasm"]}
`)
	_, err := scanForWasmArtifact(stream, "")
	require.Error(t, err)
}

func TestScanForWasmArtifact_SingleUnambiguous(t *testing.T) {
	stream := []byte(`{"reason":"compiler-artifact","target":{"name":"app","kind":["cdylib"]},"filenames":["/tmp/app.wasm"]}`)
	path, err := scanForWasmArtifact(stream, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/app.wasm", path)
}

func TestScanForWasmArtifact_NoMatch(t *testing.T) {
	stream := []byte(`{"reason":"compiler-artifact","target":{"name":"app","kind":["bin"]},"filenames":["/tmp/app.wasm"]}`)
	_, err := scanForWasmArtifact(stream, "nope")
	require.Error(t, err)
}

func TestRustTask_ResolveManifest_ExplicitHref(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	manifest := filepath.Join(runtime.SourceDir, "Cargo.toml")
	require.NoError(t, os.WriteFile(manifest, []byte("[package]\nname=\"app\"\n"), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindRust, Href: "Cargo.toml"}
	task := &RustTask{descriptor: d}

	path, err := task.resolveManifest(runtime)
	require.NoError(t, err)
	assert.Equal(t, manifest, path)
}

func TestRustTask_ResolveManifest_NearestWalksUp(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	manifest := filepath.Join(runtime.SourceDir, "Cargo.toml")
	require.NoError(t, os.WriteFile(manifest, []byte("[package]\n"), 0644))
	nested := filepath.Join(runtime.SourceDir, "src")
	require.NoError(t, os.MkdirAll(nested, 0755))
	runtime.SourceDir = nested

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindRust}
	task := &RustTask{descriptor: d}

	path, err := task.resolveManifest(runtime)
	require.NoError(t, err)
	assert.Equal(t, manifest, path)
}

func TestBindgenTarget_DefaultsByBinType(t *testing.T) {
	assert.Equal(t, "web", bindgenTarget(&pipeline.LinkDescriptor{}))
	assert.Equal(t, "no-modules", bindgenTarget(&pipeline.LinkDescriptor{BinType: pipeline.RustTypeWorker}))
	assert.Equal(t, "bundler", bindgenTarget(&pipeline.LinkDescriptor{BindgenTarget: "bundler"}))
}

func TestShouldOptimize_ExplicitLevelOverridesProfile(t *testing.T) {
	assert.True(t, shouldOptimize(&pipeline.LinkDescriptor{WasmOptLevel: "s"}, &pipeline.RuntimeContext{Profile: pipeline.ProfileDebug}))
	assert.False(t, shouldOptimize(&pipeline.LinkDescriptor{WasmOptLevel: "0"}, &pipeline.RuntimeContext{Profile: pipeline.ProfileRelease}))
	assert.True(t, shouldOptimize(&pipeline.LinkDescriptor{}, &pipeline.RuntimeContext{Profile: pipeline.ProfileRelease}))
}
