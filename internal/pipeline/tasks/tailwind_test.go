package tasks

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
	"github.com/jmylchreest/trunkgo/internal/tooling"
)

func TestTailwindTask_MissingSource(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	resolver := tooling.NewResolver(slog.Default(), t.TempDir(), true, nil)

	d := &pipeline.LinkDescriptor{Kind: pipeline.KindTailwind, Href: "missing.css"}
	task, err := NewTailwindTaskFactory(resolver, slog.Default())(d)
	require.NoError(t, err)

	_, err = task.Execute(context.Background(), runtime)
	require.Error(t, err)
	var missing *pipeline.SourceMissingError
	require.ErrorAs(t, err, &missing)
}

func TestTailwindTask_OfflineWithoutCLIOnPath(t *testing.T) {
	runtime := rc(t, pipeline.MinifyNever, pipeline.ProfileDebug)
	src := filepath.Join(runtime.SourceDir, "tailwind.css")
	require.NoError(t, os.WriteFile(src, []byte("@tailwind base;"), 0644))

	resolver := tooling.NewResolver(slog.Default(), t.TempDir(), true, nil)
	d := &pipeline.LinkDescriptor{Kind: pipeline.KindTailwind, Href: "tailwind.css"}
	task, err := NewTailwindTaskFactory(resolver, slog.Default())(d)
	require.NoError(t, err)

	_, err = task.Execute(context.Background(), runtime)
	require.Error(t, err)
	var offlineErr *tooling.OfflineToolMissingError
	require.ErrorAs(t, err, &offlineErr)
}
