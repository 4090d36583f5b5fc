// Package cmd wires the chatsum command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatsum/internal/config"
)

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(config.New()).ExecuteContext(ctx)
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "chatsum",
		Short:         "Chat summarization front-end and its readiness-gated launcher",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadFile(v, configPath); err != nil {
				return err
			}
			return setupLogging(cmd.ErrOrStderr(), v.GetString(config.KeyLogLevel), v.GetString(config.KeyLogFormat))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	bindFlag(v, config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(v, config.KeyLogFormat, flags.Lookup("log-format"))

	rootCmd.AddCommand(
		newLauncherCmd(v),
		newFrontendCmd(v),
	)
	return rootCmd
}
