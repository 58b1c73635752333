package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartSpinnerEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	stop := startSpinner(true, &buf, "testing")
	require.NotNil(t, stop)
	time.Sleep(300 * time.Millisecond)
	stop()
	stop()
}

func TestStartSpinnerDisabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	stop := startSpinner(false, &buf, "testing")
	require.NotNil(t, stop)
	stop()
	require.Zero(t, buf.Len())
}
