// Package testutil provides test utilities and helpers for secagent tests.
//
// This package contains shared test infrastructure including configuration
// builders, logger capture, TLS certificates and assertions.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systmms/secagent/internal/config"
	"github.com/systmms/secagent/internal/logging"
	"github.com/systmms/secagent/pkg/secretagent"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building secagent.yaml files.
//
// Example usage:
//
//	cfg := NewTestConfig(t).
//	    WithAgent(host, port).
//	    WithTLS(secretagent.TLSConfig{Enabled: true, CAFile: caFile}).
//	    Config()
type TestConfigBuilder struct {
	config  *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a new TestConfigBuilder with an empty version 0 file.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		config:  &config.Definition{Version: 0},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithAgent sets the agent address and port.
func (b *TestConfigBuilder) WithAgent(address, port string) *TestConfigBuilder {
	b.config.Agent.Address = address
	b.config.Agent.Port = config.Port(port)
	return b
}

// WithTimeout sets agent.timeout_ms.
func (b *TestConfigBuilder) WithTimeout(ms int) *TestConfigBuilder {
	b.config.Agent.TimeoutMs = ms
	return b
}

// WithTLS sets the agent.tls block.
func (b *TestConfigBuilder) WithTLS(tls secretagent.TLSConfig) *TestConfigBuilder {
	b.config.Agent.TLS = tls
	return b
}

// WithMetrics toggles metrics.enabled.
func (b *TestConfigBuilder) WithMetrics(enabled bool) *TestConfigBuilder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build returns the in-memory definition.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.config
}

// Write writes the configuration to a temporary secagent.yaml and returns the path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, config.DefaultPath)
	if err := b.WriteYAML(path); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}

	return path
}

// WriteYAML writes the configuration to a specific path.
func (b *TestConfigBuilder) WriteYAML(path string) error {
	data, err := yaml.Marshal(b.config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Config writes the file and returns a runtime config pointing at it, with
// a logger that discards output.
func (b *TestConfigBuilder) Config() *config.Config {
	b.t.Helper()

	return &config.Config{
		Path:   b.Write(),
		Logger: logging.Nop(),
	}
}

// WriteTestConfig writes a hand-written YAML string to a temporary file.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultPath)
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	return path
}
