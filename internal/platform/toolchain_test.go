package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupToolOverride(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks are unix-only")
	}

	tool := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))

	resolved, err := LookupTool("ffmpeg", tool)
	require.NoError(t, err)
	require.Equal(t, tool, resolved)
}

func TestLookupToolOverrideNotExecutable(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks are unix-only")
	}

	tool := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(tool, []byte(""), 0o644))

	_, err := LookupTool("ffmpeg", tool)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not executable")
}

func TestLookupToolOnPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks are unix-only")
	}

	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-decoder")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	resolved, err := LookupTool("fake-decoder", "")
	require.NoError(t, err)
	require.Equal(t, tool, resolved)
}

func TestLookupToolMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := LookupTool("ffmpeg", "")
	require.ErrorIs(t, err, ErrToolNotFound)
	require.Contains(t, err.Error(), "ffmpeg not found")
}

func TestAugmentPathAppendsToolDirsOnce(t *testing.T) {
	t.Parallel()

	sep := string(os.PathListSeparator)
	got := AugmentPath(strings.Join([]string{"/usr/bin", "/bin"}, sep), "/opt/ffmpeg/bin/ffmpeg", "/usr/bin/whisper-cli", "/opt/ffmpeg/bin/ffprobe")
	require.Equal(t, strings.Join([]string{"/usr/bin", "/bin", "/opt/ffmpeg/bin"}, sep), got)
}

func TestToolchainEnvDoesNotMutateProcessEnv(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	tc := NewToolchain("/opt/ffmpeg/bin/ffmpeg", "/opt/whisper/whisper-cli")
	env := tc.Env()

	var pathEntries []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			pathEntries = append(pathEntries, kv)
		}
	}
	require.Len(t, pathEntries, 1)
	require.Contains(t, pathEntries[0], "/opt/ffmpeg/bin")
	require.Contains(t, pathEntries[0], "/opt/whisper")
	require.Equal(t, "/usr/bin", os.Getenv("PATH"))
}
