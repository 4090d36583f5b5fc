// Package config resolves runtime settings from defaults, an optional config
// file, CHATSUM_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix  = "CHATSUM"
	configName = "chatsum"
)

const (
	KeyLauncherAddr       = "launcher.addr"
	KeyLauncherProbeHost  = "launcher.probe_host"
	KeyLauncherPublicHost = "launcher.public_host"
	KeyLauncherPort       = "launcher.port"
	KeyLauncherTimeout    = "launcher.timeout_seconds"
	KeyLauncherCommand    = "launcher.command"
	KeyLauncherLogFile    = "launcher.log_file"
	KeyLauncherStopOnExit = "launcher.stop_on_exit"

	KeyFrontendAddr      = "frontend.addr"
	KeyFrontendMaxUpload = "frontend.max_upload_bytes"
	KeyFrontendTTL       = "frontend.session_ttl"
	KeyFrontendMaxTokens = "frontend.max_tokens"

	KeyInferenceBaseURL    = "inference.base_url"
	KeyInferenceModel      = "inference.model"
	KeyInferenceToken      = "inference.token"
	KeyInferenceTokenParam = "inference.token_param"
	KeyInferenceRegion     = "inference.region"
	KeyInferenceTimeout    = "inference.timeout"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
)

type Launcher struct {
	Addr           string
	ProbeHost      string
	PublicHost     string
	Port           int
	TimeoutSeconds int
	// Command is the dependent service's argv. Empty means the caller's own
	// front-end subcommand.
	Command    []string
	LogFile    string
	StopOnExit bool
}

type Frontend struct {
	Addr           string
	MaxUploadBytes int64
	SessionTTL     time.Duration
	MaxTokens      int
}

type Inference struct {
	BaseURL    string
	Model      string
	Token      string
	TokenParam string
	Region     string
	Timeout    time.Duration
}

type Log struct {
	Level  string
	Format string
}

type Config struct {
	// File is the config file that was read, if any.
	File      string
	Launcher  Launcher
	Frontend  Frontend
	Inference Inference
	Log       Log
}

// New returns a viper instance carrying the defaults and the environment
// binding. Flags are bound onto it by the caller.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyLauncherAddr, "0.0.0.0:5000")
	v.SetDefault(KeyLauncherProbeHost, "localhost")
	v.SetDefault(KeyLauncherPublicHost, "localhost")
	v.SetDefault(KeyLauncherPort, 8501)
	v.SetDefault(KeyLauncherTimeout, 10)
	v.SetDefault(KeyLauncherCommand, []string{})
	v.SetDefault(KeyLauncherLogFile, "")
	v.SetDefault(KeyLauncherStopOnExit, false)

	v.SetDefault(KeyFrontendAddr, "0.0.0.0:8501")
	v.SetDefault(KeyFrontendMaxUpload, 32<<20)
	v.SetDefault(KeyFrontendTTL, 30*time.Minute)
	v.SetDefault(KeyFrontendMaxTokens, 500)

	v.SetDefault(KeyInferenceBaseURL, "https://api-inference.huggingface.co")
	v.SetDefault(KeyInferenceModel, "t5-small")
	v.SetDefault(KeyInferenceToken, "")
	v.SetDefault(KeyInferenceTokenParam, "")
	v.SetDefault(KeyInferenceRegion, "")
	v.SetDefault(KeyInferenceTimeout, 60*time.Second)

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a config file into v. With an empty path, chatsum.{yaml,toml,json}
// in the working directory is used when present.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read config file: %w", err)
		}
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("config: viper must not be nil")
	}
	cfg := Config{
		File: v.ConfigFileUsed(),
		Launcher: Launcher{
			Addr:           v.GetString(KeyLauncherAddr),
			ProbeHost:      v.GetString(KeyLauncherProbeHost),
			PublicHost:     v.GetString(KeyLauncherPublicHost),
			Port:           v.GetInt(KeyLauncherPort),
			TimeoutSeconds: v.GetInt(KeyLauncherTimeout),
			Command:        v.GetStringSlice(KeyLauncherCommand),
			LogFile:        v.GetString(KeyLauncherLogFile),
			StopOnExit:     v.GetBool(KeyLauncherStopOnExit),
		},
		Frontend: Frontend{
			Addr:           v.GetString(KeyFrontendAddr),
			MaxUploadBytes: v.GetInt64(KeyFrontendMaxUpload),
			SessionTTL:     v.GetDuration(KeyFrontendTTL),
			MaxTokens:      v.GetInt(KeyFrontendMaxTokens),
		},
		Inference: Inference{
			BaseURL:    strings.TrimRight(v.GetString(KeyInferenceBaseURL), "/"),
			Model:      v.GetString(KeyInferenceModel),
			Token:      v.GetString(KeyInferenceToken),
			TokenParam: v.GetString(KeyInferenceTokenParam),
			Region:     v.GetString(KeyInferenceRegion),
			Timeout:    v.GetDuration(KeyInferenceTimeout),
		},
		Log: Log{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Launcher.Port < 1 || c.Launcher.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s must be in 1..65535, got %d", KeyLauncherPort, c.Launcher.Port))
	}
	if c.Launcher.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyLauncherTimeout, c.Launcher.TimeoutSeconds))
	}
	if c.Frontend.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyFrontendMaxUpload))
	}
	if c.Frontend.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyFrontendTTL))
	}
	if c.Frontend.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyFrontendMaxTokens))
	}
	if c.Inference.Model == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyInferenceModel))
	}
	if c.Inference.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyInferenceTimeout))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
