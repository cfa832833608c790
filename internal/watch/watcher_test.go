package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_CoalescesBurstIntoOneTrigger(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Paths: []string{dir}, Debounce: 30 * time.Millisecond}, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-w.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trigger after burst")
	}

	select {
	case <-w.Triggers():
		t.Fatal("expected only one trigger for a coalesced burst")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_IgnoresMatchedPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0755))

	w, err := New(Options{
		Paths:    []string{dir},
		Ignore:   []string{"target"},
		Debounce: 30 * time.Millisecond,
	}, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "target", "ignored.txt"), []byte("x"), 0644))

	select {
	case <-w.Triggers():
		t.Fatal("expected no trigger for an ignored path")
	case <-time.After(200 * time.Millisecond):
	}
}
