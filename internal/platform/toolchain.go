package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var ErrToolNotFound = errors.New("tool not found")

// Toolchain holds the external executables the transcription engine shells
// out to. It is resolved once at startup and never mutated afterwards.
type Toolchain struct {
	FFmpeg  string
	Whisper string

	baseEnv []string
}

// LookupTool resolves name on PATH, or validates override when it is set.
func LookupTool(name, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		if err := EnsureExecutable(override); err != nil {
			return "", fmt.Errorf("%s at %s is not usable: %w", name, override, err)
		}
		return filepath.Clean(override), nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found; install it and add it to PATH", ErrToolNotFound, name)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func NewToolchain(ffmpegPath, whisperPath string) *Toolchain {
	return &Toolchain{
		FFmpeg:  ffmpegPath,
		Whisper: whisperPath,
		baseEnv: os.Environ(),
	}
}

// Env returns the environment for child processes: the process environment
// with the directories of the resolved tools appended to PATH.
func (t *Toolchain) Env() []string {
	env := make([]string, 0, len(t.baseEnv)+1)
	pathValue := ""
	for _, kv := range t.baseEnv {
		if key, value, ok := strings.Cut(kv, "="); ok && isPathKey(key) {
			pathValue = value
			continue
		}
		env = append(env, kv)
	}

	return append(env, "PATH="+AugmentPath(pathValue, t.FFmpeg, t.Whisper))
}

// AugmentPath appends the parent directories of tools to pathValue, skipping
// entries already present.
func AugmentPath(pathValue string, tools ...string) string {
	entries := filepath.SplitList(pathValue)
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		seen[entry] = true
	}

	for _, tool := range tools {
		if tool == "" {
			continue
		}
		dir := filepath.Dir(tool)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		entries = append(entries, dir)
	}

	return strings.Join(entries, string(os.PathListSeparator))
}

func EnsureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isPathKey(key string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(key, "PATH")
	}
	return key == "PATH"
}
