package secretagent

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// DefaultTimeoutMs bounds connect, handshake, send and receive when
// Config.TimeoutMs is zero.
const DefaultTimeoutMs = 1000

// NewClient wraps configuration failures in one of these.
var (
	ErrInvalidConfig = errors.New("invalid agent config")
	ErrInvalidTLS    = errors.New("invalid agent tls config")
)

// Config holds the settings shared by every call made through a Client.
type Config struct {
	Address   string    `yaml:"address"`
	Port      string    `yaml:"port"`
	TimeoutMs int       `yaml:"timeout_ms"`
	TLS       TLSConfig `yaml:"tls"`
}

// TLSConfig selects and configures TLS for the agent connection.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`     // PEM bundle trusted for the agent certificate
	CertFile           string `yaml:"cert_file"`   // Client certificate for mutual TLS
	KeyFile            string `yaml:"key_file"`    // Client key for mutual TLS
	ServerName         string `yaml:"server_name"` // Defaults to Address
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// NewConfig returns a Config with the default timeout and TLS disabled.
func NewConfig(address, port string) Config {
	return Config{
		Address:   address,
		Port:      port,
		TimeoutMs: DefaultTimeoutMs,
	}
}

// Timeout returns the per-operation timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Endpoint returns the agent address in host:port form.
func (c Config) Endpoint() string {
	return net.JoinHostPort(c.Address, c.Port)
}

// Validate checks that the agent can be addressed.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("agent address is required")
	}
	if c.Port == "" {
		return fmt.Errorf("agent port is required")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls cert_file and key_file must be set together")
	}
	return nil
}

// BuildTLS loads the trust material and returns the client TLS
// configuration, or nil when TLS is disabled.
func (t TLSConfig) BuildTLS(address string) (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in for test agents
	}
	if cfg.ServerName == "" {
		cfg.ServerName = address
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", t.CAFile)
		}
		cfg.RootCAs = pool
	}

	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
