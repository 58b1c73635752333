package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndRemove(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	file, err := store.Save("speech.wav", strings.NewReader("RIFF"))
	require.NoError(t, err)
	require.Equal(t, store.Dir(), filepath.Dir(file.Path))
	require.True(t, strings.HasSuffix(file.Name, "-speech.wav"))
	require.EqualValues(t, 4, file.Size)

	content, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(content))

	require.NoError(t, file.Remove())
	require.NoFileExists(t, file.Path)
	require.NoError(t, file.Remove(), "removing twice is not an error")
}

func TestStoreSaveKeepsTraversalInsideDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "uploads"))
	require.NoError(t, err)

	file, err := store.Save("../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	defer file.Remove()

	require.Equal(t, store.Dir(), filepath.Dir(file.Path))
	require.True(t, strings.HasSuffix(file.Name, "-etc_passwd"))
	require.NoDirExists(t, filepath.Join(root, "etc"))
}

func TestStoreSaveFallsBackForUnusableNames(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	file, err := store.Save("..", strings.NewReader("x"))
	require.NoError(t, err)
	defer file.Remove()
	require.True(t, strings.HasSuffix(file.Name, "-"+FallbackName))
}

func TestStoreSaveSameNameTwiceDoesNotCollide(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	first, err := store.Save("a.wav", strings.NewReader("first"))
	require.NoError(t, err)
	defer first.Remove()
	second, err := store.Save("a.wav", strings.NewReader("second"))
	require.NoError(t, err)
	defer second.Remove()

	require.NotEqual(t, first.Path, second.Path)
	content, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	require.Equal(t, "first", string(content))
}

func TestStoreSaveRefusesExistingName(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.newID = func() string { return "fixed" }

	first, err := store.Save("a.wav", strings.NewReader("first"))
	require.NoError(t, err)
	defer first.Remove()

	_, err = store.Save("a.wav", strings.NewReader("second"))
	require.Error(t, err)
}
