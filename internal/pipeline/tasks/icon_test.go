package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

func TestIconTask_StagesAndPatches(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "favicon.ico")
	require.NoError(t, os.WriteFile(src, []byte("icon-bytes"), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindIcon, Href: "favicon.ico", Anchor: 7}
	task, err := NewIconTask(d)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), runtime)
	require.NoError(t, err)
	require.Len(t, out.Artifacts, 1)
	require.Equal(t, pipeline.InsertionAnchor(7), out.Patch.Anchor)
	require.Len(t, out.Patch.Nodes, 1)
	require.Equal(t, "link", out.Patch.Nodes[0].Data)
}
