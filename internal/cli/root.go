package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/whisper-api/internal/config"
	"github.com/fmueller/whisper-api/internal/logging"
	"github.com/fmueller/whisper-api/internal/platform"
	"github.com/fmueller/whisper-api/internal/version"
	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	configPath string
	dotEnvPath string

	// flags receives command-line values; only flags the user changed are
	// copied into cfg.
	flags config.Config
	cfg   config.Config

	logger    *zap.Logger
	lookupEnv func(string) (string, bool)

	engineFn func(ctx context.Context) (whisper.Engine, error)
	serveFn  func(ctx context.Context) error
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{
		dotEnvPath: ".env",
		flags:      config.Default(),
		cfg:        config.Default(),
		lookupEnv:  os.LookupEnv,
	}
	app.engineFn = app.buildEngine
	app.serveFn = app.serve
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "whisper-api",
		Short:         "Serve speech-to-text transcription over HTTP",
		Long:          "whisper-api accepts audio uploads on POST /transcribe and returns the transcript produced by a whisper.cpp model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serveFn(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindConfigFlags(cmd, app)
	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindEngineFlags(cmd, app)
	bindServeFlags(cmd.Flags(), app)

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindConfigFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.configPath, "config", app.configPath, "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&app.dotEnvPath, "env-file", app.dotEnvPath, "Path to a .env file with "+config.EnvPrefix+"* variables")
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.flags.Verbose, "verbose", app.flags.Verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.flags.JSONLogs, "json", app.flags.JSONLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.flags.NoProgress, "no-progress", app.flags.NoProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.flags.Model, "model", app.flags.Model, "Model name ("+strings.Join(whisper.ModelNames(), "|")+") or model file path")
	flags.StringVar(&app.flags.ModelDir, "model-dir", app.flags.ModelDir, "Directory where models are stored")
	flags.BoolVar(&app.flags.AutoDownload, "auto-download", app.flags.AutoDownload, "Automatically download missing models")
	flags.StringVar(&app.flags.Language, "language", app.flags.Language, "Language code (auto|en|de|...) for transcription")
}

func bindEngineFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.flags.Engine, "engine", app.flags.Engine, "Transcription engine: "+config.EngineWhisperCPP+"|"+config.EngineOpenAI)
	flags.StringVar(&app.flags.FFmpegPath, "ffmpeg-path", app.flags.FFmpegPath, "Path to ffmpeg; defaults to PATH lookup")
	flags.StringVar(&app.flags.WhisperPath, "whisper-path", app.flags.WhisperPath, "Path to whisper-cli; defaults to PATH lookup")
	flags.IntVar(&app.flags.Threads, "threads", app.flags.Threads, "Threads per transcription; 0 uses the engine default")
	flags.BoolVar(&app.flags.SilenceGate, "silence-gate", app.flags.SilenceGate, "Skip transcription of near-silent audio")
	flags.Float64Var(&app.flags.SilenceThresholdDBFS, "silence-threshold-dbfs", app.flags.SilenceThresholdDBFS, "Silence gate threshold in dBFS")
	flags.StringVar(&app.flags.OpenAIBaseURL, "openai-base-url", app.flags.OpenAIBaseURL, "Base URL of an OpenAI-compatible API")
	flags.StringVar(&app.flags.OpenAIModel, "openai-model", app.flags.OpenAIModel, "Remote transcription model")
}

func bindServeFlags(flags *pflag.FlagSet, app *appState) {
	flags.StringVar(&app.flags.Listen, "listen", app.flags.Listen, "Address to listen on")
	flags.StringVar(&app.flags.UploadDir, "upload-dir", app.flags.UploadDir, "Scratch directory for uploads")
	flags.StringVar(&app.flags.UploadLimit, "upload-limit", app.flags.UploadLimit, "Maximum request body size, e.g. 100M; 0 disables")
	flags.BoolVar(&app.flags.Metrics, "metrics", app.flags.Metrics, "Expose Prometheus metrics on /metrics")
}

func (a *appState) init(cmd *cobra.Command) error {
	if err := a.loadConfig(cmd.Flags()); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Verbose: a.cfg.Verbose, JSON: a.cfg.JSONLogs, Component: cmd.Name()})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *appState) loadConfig(flags *pflag.FlagSet) error {
	cfg := config.Default()

	if a.configPath != "" {
		if err := cfg.LoadFile(a.configPath); err != nil {
			return err
		}
	}
	if a.dotEnvPath != "" {
		if err := config.LoadDotEnv(a.dotEnvPath); err != nil {
			return err
		}
	}

	lookup := a.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	overlayChangedFlags(flags, &cfg, a.flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	return nil
}

func overlayChangedFlags(flags *pflag.FlagSet, dst *config.Config, src config.Config) {
	copyFlag := map[string]func(){
		"verbose":                func() { dst.Verbose = src.Verbose },
		"json":                   func() { dst.JSONLogs = src.JSONLogs },
		"no-progress":            func() { dst.NoProgress = src.NoProgress },
		"model":                  func() { dst.Model = src.Model },
		"model-dir":              func() { dst.ModelDir = src.ModelDir },
		"auto-download":          func() { dst.AutoDownload = src.AutoDownload },
		"language":               func() { dst.Language = src.Language },
		"engine":                 func() { dst.Engine = src.Engine },
		"ffmpeg-path":            func() { dst.FFmpegPath = src.FFmpegPath },
		"whisper-path":           func() { dst.WhisperPath = src.WhisperPath },
		"threads":                func() { dst.Threads = src.Threads },
		"silence-gate":           func() { dst.SilenceGate = src.SilenceGate },
		"silence-threshold-dbfs": func() { dst.SilenceThresholdDBFS = src.SilenceThresholdDBFS },
		"openai-base-url":        func() { dst.OpenAIBaseURL = src.OpenAIBaseURL },
		"openai-model":           func() { dst.OpenAIModel = src.OpenAIModel },
		"listen":                 func() { dst.Listen = src.Listen },
		"upload-dir":             func() { dst.UploadDir = src.UploadDir },
		"upload-limit":           func() { dst.UploadLimit = src.UploadLimit },
		"metrics":                func() { dst.Metrics = src.Metrics },
	}

	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := copyFlag[f.Name]; ok {
			apply()
		}
	})
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	return platform.EnsureDir(dir)
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.cfg.NoProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
