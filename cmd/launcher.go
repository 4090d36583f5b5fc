package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatsum/internal/config"
)

func newLauncherCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launcher [-- command...]",
		Short: "Serve a redirect to the front-end, starting it first when it is not reachable",
		Long: "launcher answers GET / by probing the front-end port. When nothing is listening it " +
			"starts the dependent command in the background and waits for it to accept connections " +
			"before redirecting. The command defaults to this binary's frontend subcommand.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Launcher.Command = args
			}
			return runLauncher(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "0.0.0.0:5000", "address the launcher listens on")
	flags.Int("port", 8501, "port of the dependent front-end")
	flags.String("probe-host", "localhost", "host used for readiness probes")
	flags.String("public-host", "localhost", "host used in the redirect URL")
	flags.Int("timeout", 10, "seconds to wait for the front-end after starting it")
	flags.String("log-file", "", "file receiving the front-end's output")
	flags.Bool("stop-on-exit", false, "stop started front-ends when the launcher exits")

	bindFlag(v, config.KeyLauncherAddr, flags.Lookup("addr"))
	bindFlag(v, config.KeyLauncherPort, flags.Lookup("port"))
	bindFlag(v, config.KeyLauncherProbeHost, flags.Lookup("probe-host"))
	bindFlag(v, config.KeyLauncherPublicHost, flags.Lookup("public-host"))
	bindFlag(v, config.KeyLauncherTimeout, flags.Lookup("timeout"))
	bindFlag(v, config.KeyLauncherLogFile, flags.Lookup("log-file"))
	bindFlag(v, config.KeyLauncherStopOnExit, flags.Lookup("stop-on-exit"))
	return cmd
}
