package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// Whisper expects 16 kHz mono signed 16-bit PCM.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetBitDepth   = 16
)

type Converter struct {
	FFmpeg string
	Env    []string
}

// IsTargetWAV reports whether path is a WAV file already in the format
// whisper consumes, so it can be passed through without re-encoding.
func IsTargetWAV(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return false
	}
	return dec.WavAudioFormat == wavFormatPCM &&
		dec.BitDepth == TargetBitDepth &&
		dec.NumChans == TargetChannels &&
		dec.SampleRate == TargetSampleRate
}

// Prepare returns a path to a whisper-ready WAV for src. When src needs
// conversion the result is written into workDir.
func (c Converter) Prepare(ctx context.Context, src, workDir string) (string, error) {
	if strings.EqualFold(filepath.Ext(src), ".wav") && IsTargetWAV(src) {
		return src, nil
	}

	dst := filepath.Join(workDir, "normalized.wav")
	if err := c.Convert(ctx, src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (c Converter) Convert(ctx context.Context, src, dst string) error {
	if strings.TrimSpace(c.FFmpeg) == "" {
		return errors.New("ffmpeg path is required")
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-ar", fmt.Sprint(TargetSampleRate),
		"-ac", fmt.Sprint(TargetChannels),
		"-c:a", "pcm_s16le",
		dst,
	}

	cmd := exec.CommandContext(ctx, c.FFmpeg, args...)
	cmd.Env = c.Env
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg decode failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
