package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatsum/internal/config"
)

func newFrontendCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frontend",
		Short: "Serve the chat summarization web front-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runFrontend(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "0.0.0.0:8501", "address the front-end listens on")
	flags.Int("max-tokens", 500, "whitespace tokens kept from the input before summarizing")
	flags.Duration("session-ttl", 30*time.Minute, "idle time after which a session's history is dropped")
	flags.String("model", "t5-small", "summarization model served by the inference API")
	flags.String("inference-url", "https://api-inference.huggingface.co", "base URL of the inference API")

	bindFlag(v, config.KeyFrontendAddr, flags.Lookup("addr"))
	bindFlag(v, config.KeyFrontendMaxTokens, flags.Lookup("max-tokens"))
	bindFlag(v, config.KeyFrontendTTL, flags.Lookup("session-ttl"))
	bindFlag(v, config.KeyInferenceModel, flags.Lookup("model"))
	bindFlag(v, config.KeyInferenceBaseURL, flags.Lookup("inference-url"))
	return cmd
}
