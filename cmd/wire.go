package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chatsum/internal/config"
	"chatsum/internal/extract"
	"chatsum/internal/integrations/inference"
	"chatsum/internal/integrations/paramstore"
	"chatsum/internal/launcher"
	"chatsum/internal/server"
	"chatsum/internal/session"
	"chatsum/internal/usecase"
	"chatsum/internal/web"
)

const sweepInterval = time.Minute

func runLauncher(ctx context.Context, root config.Config) (err error) {
	cfg := root.Launcher
	command := cfg.Command
	if len(command) == 0 {
		if command, err = defaultFrontendCommand(root); err != nil {
			return err
		}
	}
	if err := launcher.CheckCommand(command); err != nil {
		return err
	}

	l, err := launcher.New(launcher.Config{
		ProbeHost:      cfg.ProbeHost,
		Port:           cfg.Port,
		PublicHost:     cfg.PublicHost,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, launcher.ProberFunc(launcher.TCPProbe), launcher.CommandSpawner{
		Args:    command,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return err
	}

	srv, err := server.New("launcher", cfg.Addr, l)
	if err != nil {
		return err
	}
	slog.Info("launcher configured", "target", l.TargetURL(), "command", strings.Join(command, " "))

	if cfg.StopOnExit {
		defer func() {
			if stopErr := l.StopSpawned(); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
		}()
	}
	return srv.Run(ctx)
}

func runFrontend(ctx context.Context, cfg config.Config) error {
	summarizer, err := newSummarizer(ctx, cfg.Inference)
	if err != nil {
		return err
	}
	svc, err := usecase.NewSummarizeService(extract.New(), summarizer, cfg.Frontend.MaxTokens)
	if err != nil {
		return err
	}

	store := session.NewStore(cfg.Frontend.SessionTTL)
	go store.RunSweeper(ctx, sweepInterval)

	h, err := web.NewHandler(svc, store, cfg.Frontend.MaxUploadBytes)
	if err != nil {
		return err
	}
	srv, err := server.New("frontend", cfg.Frontend.Addr, h)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func newSummarizer(ctx context.Context, cfg config.Inference) (*inference.Client, error) {
	opts := []inference.Option{
		inference.WithBaseURL(cfg.BaseURL),
		inference.WithModel(cfg.Model),
		inference.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, inference.WithAPIKey(cfg.Token))
	case cfg.TokenParam != "":
		store, err := paramstore.NewFromEnvironment(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		opts = append(opts, inference.WithParameterStoreToken(store, cfg.TokenParam))
	}
	return inference.NewClient(opts...)
}

// defaultFrontendCommand runs this executable's frontend subcommand on the
// launcher's target port, passing on the config file and log settings.
func defaultFrontendCommand(cfg config.Config) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	args := []string{exe}
	if cfg.File != "" {
		file, err := filepath.Abs(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("resolve config file: %w", err)
		}
		args = append(args, "--config", file)
	}
	if cfg.Log.Level != "" {
		args = append(args, "--log-level", cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		args = append(args, "--log-format", cfg.Log.Format)
	}
	return append(args, "frontend", "--addr", fmt.Sprintf("0.0.0.0:%d", cfg.Launcher.Port)), nil
}

func setupLogging(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}
