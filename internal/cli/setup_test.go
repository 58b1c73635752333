package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRejectsCustomModelPath(t *testing.T) {
	t.Parallel()

	model := filepath.Join(t.TempDir(), "custom.bin")
	require.NoError(t, os.WriteFile(model, []byte("x"), 0o644))

	_, _, err := runCommand(t, newTestApp(nil), []string{"setup", "--model", model})
	require.ErrorContains(t, err, "setup expects a named model")
}

func TestSetupRejectsUnknownModel(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, newTestApp(nil), []string{"setup", "--model", "gigantic", "--model-dir", t.TempDir()})
	require.ErrorContains(t, err, `unknown model "gigantic"`)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, newTestApp(nil), []string{"version"})
	require.NoError(t, err)
	require.Regexp(t, `^whisper-api v\S+`, stdout)

	stdout, _, err = runCommand(t, newTestApp(nil), []string{"version", "--short"})
	require.NoError(t, err)
	require.NotContains(t, stdout, "whisper-api")
}
