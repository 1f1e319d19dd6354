package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/awnumar/memguard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/systmms/secagent/cmd/secagent/commands"
	"github.com/systmms/secagent/internal/config"
	dserrors "github.com/systmms/secagent/internal/errors"
	"github.com/systmms/secagent/internal/logging"
	"github.com/systmms/secagent/pkg/secretagent"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	defer memguard.Purge()

	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
		metricsOut string
	)

	cfg := &config.Config{}
	registry := prometheus.NewRegistry()
	metrics := secretagent.NewMetrics(registry)

	rootCmd := &cobra.Command{
		Use:   "secagent",
		Short: "Fetch secrets from a secret agent",
		Long: `secagent fetches individual secrets from a secret agent over TCP or TLS.

Secrets are addressed as secrets:<key> or secrets:<resource>:<key>.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.Optional = !cmd.Flags().Changed("config")
			cfg.Metrics = metrics
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfg.Overrides.Address, "address", "", "Agent address (overrides config and "+config.EnvAddress+")")
	rootCmd.PersistentFlags().StringVar(&cfg.Overrides.Port, "port", "", "Agent port (overrides config and "+config.EnvPort+")")
	rootCmd.PersistentFlags().IntVar(&cfg.Overrides.TimeoutMs, "timeout-ms", 0, "Per-operation timeout in milliseconds")
	rootCmd.PersistentFlags().BoolVar(&cfg.Overrides.TLS, "tls", false, "Connect to the agent over TLS")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "Write client metrics in Prometheus text format to this file")

	rootCmd.AddCommand(
		commands.NewGetCommand(cfg),
		commands.NewCheckCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if metricsOut != "" || cfg.MetricsEnabled() {
		target := metricsOut
		if target == "" {
			target = "-"
		}
		if werr := commands.WriteMetrics(target, registry, os.Stderr); werr != nil && err == nil {
			err = werr
		}
	}

	return err
}
