package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/whisper-api/internal/audio/audiotest"
	"github.com/stretchr/testify/require"
)

func TestIsSilentWAVDetectsSilence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, os.WriteFile(path, audiotest.MakePCM16WAV(make([]int16, 16000), 16000, 1), 0o644))

	silent, metrics, err := IsSilentWAV(path, -65)
	require.NoError(t, err)
	require.True(t, silent)
	require.True(t, math.IsInf(metrics.RMSdBFS, -1))
	require.True(t, math.IsInf(metrics.PeakdBFS, -1))
	require.EqualValues(t, 16000, metrics.Samples)
}

func TestIsSilentWAVDetectsSpeechLikeSignal(t *testing.T) {
	t.Parallel()

	samples := audiotest.Tone(16000, 16000, 440, 0.25)

	path := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(path, audiotest.MakePCM16WAV(samples, 16000, 1), 0o644))

	silent, metrics, err := IsSilentWAV(path, -65)
	require.NoError(t, err)
	require.False(t, silent)
	require.Greater(t, metrics.PeakdBFS, -20.0)
	require.Greater(t, metrics.RMSdBFS, -20.0)
}

func TestIsSilentWAVInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not-wav.wav")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, _, err := IsSilentWAV(path, -65)
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestIsTargetWAV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "target.wav")
	require.NoError(t, os.WriteFile(target, audiotest.MakePCM16WAV(make([]int16, 1600), 16000, 1), 0o644))
	require.True(t, IsTargetWAV(target))

	stereo := filepath.Join(dir, "stereo.wav")
	require.NoError(t, os.WriteFile(stereo, audiotest.MakePCM16WAV(make([]int16, 3200), 16000, 2), 0o644))
	require.False(t, IsTargetWAV(stereo))

	resampled := filepath.Join(dir, "44k.wav")
	require.NoError(t, os.WriteFile(resampled, audiotest.MakePCM16WAV(make([]int16, 4410), 44100, 1), 0o644))
	require.False(t, IsTargetWAV(resampled))

	require.False(t, IsTargetWAV(filepath.Join(dir, "missing.wav")))
}
