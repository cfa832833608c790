package tasks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/net/html"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

func TestInlineTask_WrapsCSSInStyleTag(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "snippet.css")
	require.NoError(t, os.WriteFile(src, []byte("body{color:red}"), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindInline, Href: "snippet.css", Inline: true}
	task, err := NewInlineTask(d)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), runtime)
	require.NoError(t, err)
	require.Empty(t, out.Artifacts)
	require.Len(t, out.Patch.Nodes, 1)
	require.Equal(t, "style", out.Patch.Nodes[0].Data)

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, out.Patch.Nodes[0]))
	require.Contains(t, buf.String(), "color:red")
}

func TestInlineTask_ExplicitTypeOverridesExtension(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "snippet.txt")
	require.NoError(t, os.WriteFile(src, []byte("console.log('hi')"), 0644))

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindInline, Href: "snippet.txt", InlineType: "js"}
	task, err := NewInlineTask(d)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), runtime)
	require.NoError(t, err)
	require.Equal(t, "script", out.Patch.Nodes[0].Data)
}
