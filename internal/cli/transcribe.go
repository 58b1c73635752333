package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.transcribeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if whisper.IsBlank(result.Text) {
				app.log().Warn(noSpeechHint())
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				return enc.Encode(map[string]string{"text": result.Text})
			}
			fmt.Fprintln(out, result.Text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json-output", false, `Print {"text": ...} as returned by POST /transcribe`)
	return cmd
}

func (a *appState) transcribeFile(ctx context.Context, audioPath string) (whisper.Result, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return whisper.Result{}, fmt.Errorf("audio file not found: %w", err)
	}

	engineFn := a.engineFn
	if engineFn == nil {
		engineFn = a.buildEngine
	}
	engine, err := engineFn(ctx)
	if err != nil {
		return whisper.Result{}, err
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("language", a.cfg.Language))
	stopSpinner := startSpinner(a.progressEnabled(), os.Stderr, "Transcribing")
	started := time.Now()

	result, err := engine.Transcribe(ctx, whisper.TranscriptionRequest{
		AudioPath: audioPath,
		Language:  a.cfg.Language,
	})
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return whisper.Result{}, err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)), zap.String("detected_language", result.Language))

	return result, nil
}

func noSpeechHint() string {
	return "No speech detected. Check that the file contains audible speech and that --language matches it."
}
