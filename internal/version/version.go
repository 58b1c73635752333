package version

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info describes the running build. Version, Commit and Date are set with
// -ldflags "-X github.com/fmueller/whisper-api/internal/version.Version=..." at
// release time.
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

func Current() Info {
	return Info{
		Version:   Resolve(),
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// String renders "v<version> (commit <commit>, built <date>, <go version>)",
// omitting unknown parts.
func (i Info) String() string {
	parts := make([]string, 0, 3)
	if i.Commit != "" && i.Commit != "unknown" {
		parts = append(parts, "commit "+i.Commit)
	}
	if i.Date != "" && i.Date != "unknown" {
		parts = append(parts, "built "+i.Date)
	}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	if len(parts) == 0 {
		return "v" + i.Version
	}
	return fmt.Sprintf("v%s (%s)", i.Version, strings.Join(parts, ", "))
}

// Resolve returns the full version string, appending a git-derived suffix
// when the binary is run from inside a git repository whose HEAD is not on
// a release tag.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := computeGitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func computeGitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	prefix := "v" + base + "-"
	if strings.HasPrefix(desc, prefix) {
		return strings.TrimPrefix(desc, prefix)
	}

	return desc
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
