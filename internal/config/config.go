package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	dserrors "github.com/systmms/secagent/internal/errors"
	"github.com/systmms/secagent/internal/logging"
	"github.com/systmms/secagent/pkg/secretagent"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when --config is not given
const DefaultPath = "secagent.yaml"

// Environment variables that override the file
const (
	EnvAddress       = "SECRET_AGENT_ADDRESS"
	EnvPort          = "SECRET_AGENT_PORT"
	EnvTimeoutMs     = "SECRET_AGENT_TIMEOUT_MS"
	EnvTLSEnabled    = "SECRET_AGENT_TLS_ENABLED"
	EnvTLSCAFile     = "SECRET_AGENT_TLS_CA_FILE"
	EnvTLSCertFile   = "SECRET_AGENT_TLS_CERT_FILE"
	EnvTLSKeyFile    = "SECRET_AGENT_TLS_KEY_FILE"
	EnvTLSServerName = "SECRET_AGENT_TLS_SERVER_NAME"
)

// Config holds the runtime configuration
type Config struct {
	Path   string
	Logger *logging.Logger

	// Optional makes a missing file non-fatal. The agent address must
	// then come from the environment or flags.
	Optional bool

	// Overrides come from command line flags and win over the file and
	// the environment.
	Overrides Overrides

	Metrics    *secretagent.Metrics
	Definition *Definition
}

// Definition represents the secagent.yaml structure
type Definition struct {
	Version int           `yaml:"version"`
	Agent   AgentConfig   `yaml:"agent"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AgentConfig locates the secret agent
type AgentConfig struct {
	Address   string                `yaml:"address,omitempty"`
	Port      Port                  `yaml:"port,omitempty"`
	TimeoutMs int                   `yaml:"timeout_ms,omitempty"`
	TLS       secretagent.TLSConfig `yaml:"tls"`
}

// MetricsConfig toggles client metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Port accepts both `port: 3005` and `port: "3005"`
type Port string

// UnmarshalYAML implements yaml.Unmarshaler
func (p *Port) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: port must be a string or integer", node.Line)
	}
	*p = Port(strings.TrimSpace(node.Value))
	return nil
}

// Overrides carries values set on the command line. Zero values are ignored.
type Overrides struct {
	Address   string
	Port      string
	TimeoutMs int
	TLS       bool
}

// Load reads, validates and parses the configuration file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Optional {
				c.debug("no configuration file at %s, using environment and flags", c.Path)
				c.Definition = &Definition{}
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create secagent.yaml or set " + EnvAddress + " and " + EnvPort,
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := validateSchema(data); err != nil {
		return err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your secagent.yaml file",
		}
	}

	c.Definition = &def
	c.debug("loaded configuration from %s", c.Path)
	return nil
}

// ApplyEnv overlays SECRET_AGENT_* variables read through getenv
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	agent := &c.definition().Agent

	if v := getenv(EnvAddress); v != "" {
		agent.Address = v
	}
	if v := getenv(EnvPort); v != "" {
		agent.Port = Port(v)
	}
	if v := getenv(EnvTimeoutMs); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return dserrors.ConfigError{
				Field:      EnvTimeoutMs,
				Value:      v,
				Message:    "timeout must be a non-negative integer",
				Suggestion: "Use milliseconds, for example 1000",
			}
		}
		agent.TimeoutMs = ms
	}
	if v := getenv(EnvTLSEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      EnvTLSEnabled,
				Value:      v,
				Message:    "expected a boolean",
				Suggestion: "Use true or false",
			}
		}
		agent.TLS.Enabled = enabled
	}
	if v := getenv(EnvTLSCAFile); v != "" {
		agent.TLS.CAFile = v
	}
	if v := getenv(EnvTLSCertFile); v != "" {
		agent.TLS.CertFile = v
	}
	if v := getenv(EnvTLSKeyFile); v != "" {
		agent.TLS.KeyFile = v
	}
	if v := getenv(EnvTLSServerName); v != "" {
		agent.TLS.ServerName = v
	}
	return nil
}

// ApplyOverrides overlays command line values
func (c *Config) ApplyOverrides(o Overrides) {
	agent := &c.definition().Agent

	if o.Address != "" {
		agent.Address = o.Address
	}
	if o.Port != "" {
		agent.Port = Port(o.Port)
	}
	if o.TimeoutMs > 0 {
		agent.TimeoutMs = o.TimeoutMs
	}
	if o.TLS {
		agent.TLS.Enabled = true
	}
}

// ClientConfig returns the agent settings ready for secretagent.NewClient
func (c *Config) ClientConfig() (secretagent.Config, error) {
	if c.Definition == nil {
		return secretagent.Config{}, dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	agent := c.Definition.Agent

	if agent.Address == "" {
		return secretagent.Config{}, dserrors.ConfigError{
			Field:      "agent.address",
			Message:    "agent address is required",
			Suggestion: "Set agent.address in " + c.Path + ", " + EnvAddress + " or --address",
		}
	}
	if agent.Port == "" {
		return secretagent.Config{}, dserrors.ConfigError{
			Field:      "agent.port",
			Message:    "agent port is required",
			Suggestion: "Set agent.port in " + c.Path + ", " + EnvPort + " or --port",
		}
	}

	cfg := secretagent.NewConfig(agent.Address, string(agent.Port))
	if agent.TimeoutMs > 0 {
		cfg.TimeoutMs = agent.TimeoutMs
	}
	cfg.TLS = agent.TLS

	if err := cfg.Validate(); err != nil {
		return secretagent.Config{}, dserrors.ConfigError{
			Field:   "agent",
			Message: err.Error(),
		}
	}
	return cfg, nil
}

// MetricsEnabled reports whether the file asks for client metrics
func (c *Config) MetricsEnabled() bool {
	return c.Definition != nil && c.Definition.Metrics.Enabled
}

func (c *Config) definition() *Definition {
	if c.Definition == nil {
		c.Definition = &Definition{}
	}
	return c.Definition
}

func (c *Config) debug(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Debug(format, args...)
	}
}
