package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fmueller/whisper-api/internal/config"
	"github.com/fmueller/whisper-api/internal/download"
	"github.com/fmueller/whisper-api/internal/platform"
	"github.com/fmueller/whisper-api/internal/whisper"
	"go.uber.org/zap"
)

// buildEngine resolves every external dependency of the configured engine.
// Any failure here is fatal for the calling command.
func (a *appState) buildEngine(ctx context.Context) (whisper.Engine, error) {
	ffmpeg, err := platform.LookupTool("ffmpeg", a.cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}
	a.log().Debug("found ffmpeg", zap.String("path", ffmpeg))

	if a.cfg.Engine == config.EngineOpenAI {
		a.log().Info("using remote transcription engine", zap.String("model", a.cfg.OpenAIModel), zap.String("base_url", a.cfg.OpenAIBaseURL))
		return whisper.NewOpenAIEngine(whisper.OpenAIEngineOptions{
			APIKey:  a.cfg.OpenAIAPIKey,
			BaseURL: a.cfg.OpenAIBaseURL,
			Model:   a.cfg.OpenAIModel,
			Logger:  a.log(),
		})
	}

	self, err := os.Executable()
	if err != nil {
		self = ""
	}
	enginePath, err := whisper.ResolveEnginePath(a.cfg.WhisperPath, self)
	if err != nil {
		return nil, err
	}

	model, err := a.ensureModelAvailable(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := whisper.NewCLIEngine(whisper.CLIEngineOptions{
		Toolchain:            platform.NewToolchain(ffmpeg, enginePath),
		ModelPath:            model.Path,
		Threads:              a.cfg.Threads,
		SilenceGate:          a.cfg.SilenceGate,
		SilenceThresholdDBFS: a.cfg.SilenceThresholdDBFS,
		Logger:               a.log(),
	})
	if err != nil {
		return nil, err
	}

	a.log().Info("model loaded", zap.String("model", model.Name), zap.String("path", model.Path), zap.String("engine", enginePath))
	return engine, nil
}

func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(a.cfg.Model, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.cfg.AutoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `whisper-api setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := a.fetchModel(ctx, resolved); err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

func (a *appState) fetchModel(ctx context.Context, model whisper.ResolvedModel) error {
	if model.URL == "" {
		return errors.New("model has no download URL")
	}

	err := download.DownloadFile(ctx, download.Options{
		URL:            model.URL,
		Destination:    model.Path,
		ExpectedSHA256: model.SHA256,
		NoProgress:     a.cfg.NoProgress,
		Logger:         a.log(),
	})
	if err != nil {
		return fmt.Errorf("download model %q: %w", model.Name, err)
	}
	return nil
}
