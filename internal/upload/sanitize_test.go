package upload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  string
	}{
		{"speech.wav", "speech.wav"},
		{"My Recording (1).mp3", "My_Recording_1.mp3"},
		{"../../etc/passwd", "etc_passwd"},
		{`..\..\windows\win.ini`, "windows_win.ini"},
		{"/abs/path/clip.ogg", "abs_path_clip.ogg"},
		{"  spaced   out  .m4a", "spaced_out_.m4a"},
		{"café-straße.flac", "cafe-strae.flac"},
		{"ﬁle.wav", "file.wav"},
		{".hidden.wav", "hidden.wav"},
		{"__init__.wav", "init__.wav"},
		{"CON.wav", "_CON.wav"},
		{"lpt1", "_lpt1"},
		{"console.wav", "console.wav"},
		{"日本語.wav", "wav"},
		{"..", ""},
		{"///", ""},
		{"", ""},
		{"semi;colon&amp$shell`.wav", "semicolonampshell.wav"},
	}

	for _, tc := range cases {
		require.Equalf(t, tc.want, SanitizeFilename(tc.input), "input %q", tc.input)
	}
}

func TestSanitizeFilenameNeverContainsSeparators(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"a/b\\c", "../../../../tmp/x", "..\\..\\x", "a/../../b"} {
		got := SanitizeFilename(input)
		require.NotContains(t, got, "/")
		require.NotContains(t, got, "\\")
		require.NotEqual(t, "..", got)
	}
}
