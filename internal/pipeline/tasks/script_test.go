package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

func TestScriptTask_MinifiesAndPatchesSrc(t *testing.T) {
	runtime := rc(t, pipeline.MinifyAlways, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "main.js")
	require.NoError(t, os.WriteFile(src, []byte("function hello() {\n  return 1;\n}\n"), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindScript, Href: "main.js"}
	task, err := NewScriptTask(d)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), runtime)
	require.NoError(t, err)
	require.Len(t, out.Artifacts, 1)
	require.Equal(t, "script", out.Patch.Nodes[0].Data)
}

func TestScriptTask_NoMinifyOptOut(t *testing.T) {
	runtime := rc(t, pipeline.MinifyAlways, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "main.js")
	original := "function hello() {\n  return 1;\n}\n"
	require.NoError(t, os.WriteFile(src, []byte(original), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindScript, Href: "main.js", NoMinify: true}
	task, err := NewScriptTask(d)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), runtime)
	require.NoError(t, err)

	staged, err := os.ReadFile(out.Artifacts[0].StagingPath)
	require.NoError(t, err)
	require.Equal(t, original, string(staged))
}
