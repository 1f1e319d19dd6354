package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/secagent/internal/config"
	dserrors "github.com/systmms/secagent/internal/errors"
)

func NewCheckCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check configuration and agent connectivity",
		Long: `Verify that the configuration is valid and that the agent accepts a
connection, including the TLS handshake when TLS is enabled.

No secret is requested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cfg)
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration loaded successfully")

			endpoint := client.Config().Endpoint()
			if err := client.Ping(cmd.Context()); err != nil {
				if dserrors.IsRetryable(err) {
					cfg.Logger.Warn("Agent at %s is unreachable, the failure may be temporary", endpoint)
				}
				return dserrors.AgentError("check", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Agent reachable at %s\n", endpoint)
			return nil
		},
	}

	return cmd
}
