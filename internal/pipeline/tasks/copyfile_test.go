package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

func TestCopyFileTask_ByteForByteCopy(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "robots.txt")
	require.NoError(t, os.WriteFile(src, []byte("User-agent: *\n"), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindCopyFile, Href: "robots.txt"}
	task, err := NewCopyFileTask(d)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), runtime)
	require.NoError(t, err)
	require.Len(t, out.Artifacts, 1)
	require.Empty(t, out.Artifacts[0].Hash, "copy-file does not hash")

	staged, err := os.ReadFile(out.Artifacts[0].StagingPath)
	require.NoError(t, err)
	require.Equal(t, "User-agent: *\n", string(staged))
}
