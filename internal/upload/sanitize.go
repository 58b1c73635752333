package upload

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FallbackName is used when a client filename sanitizes to nothing.
const FallbackName = "upload"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename reduces a client-supplied name to a single safe path
// component: ASCII only, no separators, only [A-Za-z0-9_.-], no leading or
// trailing dots or underscores. It returns "" when nothing survives.
func SanitizeFilename(name string) string {
	folded := make([]rune, 0, len(name))
	for _, r := range norm.NFKD.String(name) {
		if r > unicode.MaxASCII {
			continue
		}
		if r == '/' || r == '\\' {
			r = ' '
		}
		folded = append(folded, r)
	}

	joined := strings.Join(strings.Fields(string(folded)), "_")
	cleaned := strings.Trim(unsafeChars.ReplaceAllString(joined, ""), "._")
	if cleaned == "" {
		return ""
	}

	stem, _, _ := strings.Cut(cleaned, ".")
	if windowsDeviceNames[strings.ToUpper(stem)] {
		cleaned = "_" + cleaned
	}
	return cleaned
}
