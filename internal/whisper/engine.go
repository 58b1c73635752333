package whisper

import (
	"context"
	"strings"
	"time"
)

const blankAudioToken = "[BLANK_AUDIO]"

type TranscriptionRequest struct {
	AudioPath string
	Language  string
}

// Result is the outcome of one transcription. Only Text is part of the HTTP
// contract; the rest is kept for logging and the CLI.
type Result struct {
	Text     string
	Language string
	Segments []Segment
}

type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Engine is safe for concurrent use once constructed.
type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error)
}

// IsBlank reports whether a transcript carries no speech.
func IsBlank(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}
	return strings.EqualFold(trimmed, blankAudioToken)
}

func normalizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
