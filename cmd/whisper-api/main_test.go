package main

import (
	"errors"
	"testing"

	"github.com/fmueller/whisper-api/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"whisper-api\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, shouldPrintUsageHint(errors.New(`invalid argument "x" for "--threads" flag: strconv.ParseInt: parsing "x": invalid syntax`)))
	require.False(t, shouldPrintUsageHint(errors.New("tool not found: ffmpeg not found; install it and add it to PATH")))
	require.False(t, shouldPrintUsageHint(errors.New("download model \"base\": context deadline exceeded")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "whisper-api", helpHintTarget(nil, nil))
	require.Equal(t, "whisper-api", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "whisper-api", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "whisper-api transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "whisper-api serve", helpHintTarget(root, []string{"serve", "--listen"}))
}
