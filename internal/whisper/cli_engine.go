package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/whisper-api/internal/audio"
	"github.com/fmueller/whisper-api/internal/platform"
	"go.uber.org/zap"
)

const EnginePathEnv = "WHISPER_API_WHISPER_PATH"

type CLIEngineOptions struct {
	Toolchain *platform.Toolchain
	ModelPath string
	Threads   int

	SilenceGate          bool
	SilenceThresholdDBFS float64

	Logger *zap.Logger
}

// CLIEngine runs whisper.cpp's whisper-cli for every request. The model path
// and toolchain are fixed at construction.
type CLIEngine struct {
	toolchain *platform.Toolchain
	env       []string
	converter audio.Converter
	modelPath string
	threads   int

	silenceGate          bool
	silenceThresholdDBFS float64

	logger *zap.Logger
}

func NewCLIEngine(opts CLIEngineOptions) (*CLIEngine, error) {
	if opts.Toolchain == nil {
		return nil, errors.New("toolchain is required")
	}
	if strings.TrimSpace(opts.Toolchain.Whisper) == "" {
		return nil, errors.New("whisper engine path is required")
	}
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("load model %s: %w", opts.ModelPath, err)
	}
	if err := platform.EnsureExecutable(opts.Toolchain.Whisper); err != nil {
		return nil, fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	env := opts.Toolchain.Env()
	return &CLIEngine{
		toolchain:            opts.Toolchain,
		env:                  env,
		converter:            audio.Converter{FFmpeg: opts.Toolchain.FFmpeg, Env: env},
		modelPath:            opts.ModelPath,
		threads:              opts.Threads,
		silenceGate:          opts.SilenceGate,
		silenceThresholdDBFS: opts.SilenceThresholdDBFS,
		logger:               logger,
	}, nil
}

// ResolveEnginePath finds whisper-cli: the override, then PATH, then the
// locations a packaged install ships it next to the server binary.
func ResolveEnginePath(override, selfExecutable string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		if err := platform.EnsureExecutable(override); err != nil {
			return "", fmt.Errorf("whisper engine override is not executable: %w", err)
		}
		return override, nil
	}

	if path, err := exec.LookPath(engineBinaryName()); err == nil {
		return path, nil
	}

	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := platform.EnsureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s not found on PATH or near %s; install whisper.cpp or set %s", platform.ErrToolNotFound, engineBinaryName(), selfExecutable, EnginePathEnv)
}

func EnginePathCandidates(selfExecutable string) []string {
	if selfExecutable == "" {
		return nil
	}

	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (e *CLIEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}

	workDir, err := os.MkdirTemp("", "whisper-api-")
	if err != nil {
		return Result{}, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	wavPath, err := e.converter.Prepare(ctx, req.AudioPath, workDir)
	if err != nil {
		return Result{}, err
	}

	if e.silenceGate && e.isSilent(wavPath) {
		return Result{Language: normalizeLanguage(req.Language)}, nil
	}

	outBase := filepath.Join(workDir, "transcript")
	args := []string{"-m", e.modelPath, "-f", wavPath, "-nt", "-oj", "-of", outBase}
	if e.threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.threads))
	}
	lang := normalizeLanguage(req.Language)
	if lang != "auto" {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, e.toolchain.Whisper, args...)
	cmd.Env = e.env
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.logger.Debug("running whisper engine", zap.String("engine", e.toolchain.Whisper), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return Result{}, fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", e.toolchain.Whisper, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return Result{}, fmt.Errorf("whisper engine crashed with an illegal CPU instruction; " +
				"your CPU may lack required instruction set extensions; " +
				"point " + EnginePathEnv + " at a whisper-cli binary built for your CPU")
		}
		return Result{}, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}

	content, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}

	return parseCLIOutput(content)
}

func (e *CLIEngine) isSilent(wavPath string) bool {
	silent, metrics, err := audio.IsSilentWAV(wavPath, e.silenceThresholdDBFS)
	if err != nil {
		e.logger.Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", wavPath))
		return false
	}
	if silent {
		e.logger.Info(
			"audio considered silent; skipping transcription",
			zap.Float64("rms_dbfs", metrics.RMSdBFS),
			zap.Float64("peak_dbfs", metrics.PeakdBFS),
			zap.Float64("threshold_dbfs", e.silenceThresholdDBFS),
		)
	}
	return silent
}

type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseCLIOutput(content []byte) (Result, error) {
	var out cliOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return Result{}, fmt.Errorf("decode whisper output: %w", err)
	}

	result := Result{Language: out.Result.Language}
	var text strings.Builder
	for _, part := range out.Transcription {
		if IsBlank(part.Text) {
			continue
		}
		text.WriteString(part.Text)
		result.Segments = append(result.Segments, Segment{
			Start: time.Duration(part.Offsets.From) * time.Millisecond,
			End:   time.Duration(part.Offsets.To) * time.Millisecond,
			Text:  strings.TrimSpace(part.Text),
		})
	}
	result.Text = strings.TrimSpace(text.String())

	return result, nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
