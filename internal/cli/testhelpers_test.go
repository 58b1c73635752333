package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/stretchr/testify/require"
)

// newTestApp returns an app state isolated from the process environment and
// from any .env file in the working directory.
func newTestApp(env map[string]string) *appState {
	app := newAppState()
	app.dotEnvPath = ""
	app.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return app
}

func runCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetContext(context.Background())
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type fakeEngine struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []whisper.TranscriptionRequest
}

func (f *fakeEngine) Transcribe(_ context.Context, req whisper.TranscriptionRequest) (whisper.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return whisper.Result{}, f.err
	}
	return whisper.Result{Text: f.text, Language: "en"}, nil
}

func writeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake executables are shell scripts")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

const fakeFFmpeg = `#!/bin/sh
src=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then src="$arg"; fi
  prev="$arg"
done
cp "$src" "$prev"
`

const fakeWhisperCLI = `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-of" ]; then out="$arg"; fi
  prev="$arg"
done
cat > "$out.json" <<'JSON'
{"result":{"language":"en"},"transcription":[{"offsets":{"from":0,"to":900},"text":" Testing"},{"offsets":{"from":900,"to":1800},"text":" one two."}]}
JSON
`

// fakeToolchain writes fake ffmpeg and whisper-cli executables plus a model
// file and returns the flags that point the CLI at them.
func fakeToolchain(t *testing.T) []string {
	t.Helper()

	dir := t.TempDir()
	ffmpeg := writeExecutable(t, dir, "ffmpeg", fakeFFmpeg)
	whisperCLI := writeExecutable(t, dir, "whisper-cli", fakeWhisperCLI)
	model := filepath.Join(dir, "ggml-test.bin")
	require.NoError(t, os.WriteFile(model, []byte("weights"), 0o644))

	return []string{
		"--ffmpeg-path", ffmpeg,
		"--whisper-path", whisperCLI,
		"--model", model,
		"--no-progress",
	}
}
