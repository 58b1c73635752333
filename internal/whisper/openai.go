package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type OpenAIEngineOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// OpenAIEngine forwards audio to an OpenAI-compatible transcription API
// instead of running a local model.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIEngine(opts OpenAIEngineOptions) (*OpenAIEngine, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai engine requires an API key")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.Whisper1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}

	audioReq := openai.AudioRequest{
		Model:    e.model,
		FilePath: req.AudioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if lang := normalizeLanguage(req.Language); lang != "auto" {
		audioReq.Language = lang
	}

	e.logger.Debug("sending audio to remote transcription API", zap.String("model", e.model), zap.String("audio", req.AudioPath))
	resp, err := e.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		return Result{}, fmt.Errorf("remote transcription failed: %w", err)
	}

	result := Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: secondsToDuration(s.Start),
			End:   secondsToDuration(s.End),
			Text:  strings.TrimSpace(s.Text),
		})
	}

	return result, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
