package tooling

import (
	"context"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RejectsPathBinaryWithUnmatchedVersion(t *testing.T) {
	logger := slog.Default()
	r := NewResolver(logger, t.TempDir(), true, nil)

	d := Descriptor{
		Name:         "echo",
		VersionArgs:  []string{"--version"},
		VersionRegex: regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	}

	// "echo" exists on PATH but its --version output won't match the
	// regex, so resolution should fail offline rather than panic.
	_, err := r.Resolve(context.Background(), d)
	require.Error(t, err)
}

func TestResolver_OfflineMissingToolFailsOnEveryCall(t *testing.T) {
	logger := slog.Default()
	r := NewResolver(logger, t.TempDir(), true, nil)

	d := Descriptor{
		Name:         "missing-tool-xyz",
		VersionArgs:  []string{"--version"},
		VersionRegex: regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	}

	_, err1 := r.Resolve(context.Background(), d)
	_, err2 := r.Resolve(context.Background(), d)
	require.Error(t, err1)
	require.Error(t, err2)
	var offlineErr *OfflineToolMissingError
	require.ErrorAs(t, err1, &offlineErr)
	assert.Equal(t, err1.Error(), err2.Error())
}
