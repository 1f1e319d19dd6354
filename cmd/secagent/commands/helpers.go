package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/systmms/secagent/internal/config"
	dserrors "github.com/systmms/secagent/internal/errors"
	"github.com/systmms/secagent/internal/logging"
	"github.com/systmms/secagent/pkg/secretagent"
)

// newClient resolves file, environment and flag settings into an agent client
func newClient(cfg *config.Config) (*secretagent.Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(cfg.Overrides)

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}

	opts := []secretagent.Option{secretagent.WithLogger(cfg.Logger.With("agent", clientCfg.Endpoint()))}
	if cfg.Metrics != nil {
		opts = append(opts, secretagent.WithMetrics(cfg.Metrics))
	}

	client, err := secretagent.NewClient(clientCfg, opts...)
	if err != nil {
		return nil, clientConfigError(err)
	}

	if cfg.Logger.DebugEnabled() {
		cfg.Logger.Debug("agent endpoint %s (tls=%t, timeout=%s)", clientCfg.Endpoint(), clientCfg.TLS.Enabled, clientCfg.Timeout())
	}
	return client, nil
}

func clientConfigError(err error) error {
	if errors.Is(err, secretagent.ErrInvalidTLS) {
		return dserrors.ConfigError{
			Field:      "agent.tls",
			Message:    err.Error(),
			Suggestion: "Check that the TLS certificate and key files exist and contain PEM data",
		}
	}
	return dserrors.ConfigError{
		Field:      "agent",
		Message:    err.Error(),
		Suggestion: "Check agent.address, agent.port and agent.timeout_ms",
	}
}

// WriteMetrics dumps every gathered family in Prometheus text format.
// A target of "-" writes to fallback.
func WriteMetrics(target string, gatherer prometheus.Gatherer, fallback io.Writer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	w := fallback
	if target != "-" {
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return dserrors.UserError{
				Message:    "Failed to write metrics file",
				Details:    err.Error(),
				Suggestion: "Check that the directory exists and is writable",
				Err:        err,
			}
		}
		defer f.Close()
		w = f
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
