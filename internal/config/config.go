// Package config resolves server settings from defaults, an optional YAML
// file, .env / WHISPER_API_* environment variables and command-line flags,
// in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	gbytes "github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "WHISPER_API_"

const (
	EngineWhisperCPP = "whisper-cpp"
	EngineOpenAI     = "openai"
)

type Config struct {
	Listen      string `yaml:"listen"`
	UploadDir   string `yaml:"upload_dir"`
	UploadLimit string `yaml:"upload_limit"`

	Engine       string `yaml:"engine"`
	Model        string `yaml:"model"`
	ModelDir     string `yaml:"model_dir"`
	AutoDownload bool   `yaml:"auto_download"`
	Language     string `yaml:"language"`
	Threads      int    `yaml:"threads"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	WhisperPath string `yaml:"whisper_path"`

	SilenceGate          bool    `yaml:"silence_gate"`
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`

	Metrics bool `yaml:"metrics"`

	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"`

	Verbose  bool `yaml:"verbose"`
	JSONLogs bool `yaml:"json_logs"`
	// NoProgress is a CLI-only switch.
	NoProgress bool `yaml:"-"`
}

func Default() Config {
	return Config{
		Listen:               ":5000",
		UploadDir:            "uploads",
		UploadLimit:          "100M",
		Engine:               EngineWhisperCPP,
		Model:                "base",
		AutoDownload:         true,
		Language:             "auto",
		SilenceThresholdDBFS: -65,
		Metrics:              true,
		OpenAIModel:          "whisper-1",
	}
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays WHISPER_API_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = parsed
		}
	}

	str("LISTEN", &c.Listen)
	str("UPLOAD_DIR", &c.UploadDir)
	str("UPLOAD_LIMIT", &c.UploadLimit)
	str("ENGINE", &c.Engine)
	str("MODEL", &c.Model)
	str("MODEL_DIR", &c.ModelDir)
	boolean("AUTO_DOWNLOAD", &c.AutoDownload)
	str("LANGUAGE", &c.Language)
	str("FFMPEG_PATH", &c.FFmpegPath)
	str("WHISPER_PATH", &c.WhisperPath)
	boolean("SILENCE_GATE", &c.SilenceGate)
	boolean("METRICS", &c.Metrics)
	str("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("OPENAI_MODEL", &c.OpenAIModel)
	boolean("VERBOSE", &c.Verbose)
	boolean("JSON_LOGS", &c.JSONLogs)

	if v, ok := lookup(EnvPrefix + "THREADS"); ok {
		threads, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTHREADS: %w", EnvPrefix, err))
		} else {
			c.Threads = threads
		}
	}
	if v, ok := lookup(EnvPrefix + "SILENCE_THRESHOLD_DBFS"); ok {
		threshold, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSILENCE_THRESHOLD_DBFS: %w", EnvPrefix, err))
		} else {
			c.SilenceThresholdDBFS = threshold
		}
	}

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		errs = append(errs, errors.New("upload directory must not be empty"))
	}
	if _, err := c.UploadLimitBytes(); err != nil {
		errs = append(errs, err)
	}
	switch c.Engine {
	case EngineWhisperCPP:
	case EngineOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			errs = append(errs, fmt.Errorf("engine %q requires an API key (%sOPENAI_API_KEY)", EngineOpenAI, EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q (expected %s or %s)", c.Engine, EngineWhisperCPP, EngineOpenAI))
	}
	if c.Threads < 0 {
		errs = append(errs, errors.New("threads must not be negative"))
	}

	return errors.Join(errs...)
}

// UploadLimitBytes parses UploadLimit ("100M", "512K", ...). Zero disables
// the limit.
func (c Config) UploadLimitBytes() (int64, error) {
	if strings.TrimSpace(c.UploadLimit) == "" || c.UploadLimit == "0" {
		return 0, nil
	}
	limit, err := gbytes.Parse(c.UploadLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid upload limit %q: %w", c.UploadLimit, err)
	}
	return limit, nil
}
