package secretagent

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
)

// Logger receives one line per failed request. Messages never contain
// secret material. *logging.Logger satisfies it.
type Logger interface {
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

// Client fetches secrets from one agent. It is safe for concurrent use:
// every call opens, uses and closes its own connection.
type Client struct {
	cfg       Config
	tlsConfig *tls.Config
	dialer    Dialer
	logger    Logger
	metrics   *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger routes failure messages to logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithMetrics records every request in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient validates cfg, loads its TLS material and returns a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	tlsConfig, err := cfg.TLS.BuildTLS(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTLS, err)
	}

	c := &Client{
		cfg:       cfg,
		tlsConfig: tlsConfig,
		dialer:    TCPDialer{},
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the client's settings.
func (c *Client) Config() Config {
	return c.cfg
}

// GetSecret fetches the secret named by path ("secrets:[resource:]key").
//
// On failure the returned error is an *Error and no payload is returned.
// The connection, once opened, is closed exactly once before returning.
func (c *Client) GetSecret(ctx context.Context, path string) (payload *Payload, err error) {
	start := time.Now()
	defer func() { c.metrics.record(err, time.Since(start)) }()

	sp, err := ResolvePath(path, PathPrefix)
	if err != nil {
		c.logger.Error("empty or malformed secret key")
		return nil, err
	}

	body, err := c.roundTrip(ctx, sp)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(body)

	doc, err := DecodeResponse(body)
	if err != nil {
		c.logger.Error("empty secret json response")
		return nil, err
	}
	defer doc.Wipe()

	payload, err = Extract(doc)
	if err != nil {
		c.logger.Error("%v", err)
		return nil, err
	}

	c.logger.Debug("fetched secret %s (%d bytes)", sp.Key, payload.Len())
	return payload, nil
}

// Ping opens and closes one connection without sending a request.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx, c.cfg.Endpoint(), c.tlsConfig, c.cfg.Timeout())
	if err != nil {
		c.logger.Error("failed to create socket: %v", err)
		return err
	}
	return conn.Close()
}

// roundTrip sends the request for sp on a fresh connection and returns the
// response body. The connection is closed before it returns.
func (c *Client) roundTrip(ctx context.Context, sp SecretPath) ([]byte, error) {
	frame, err := EncodeRequest(sp)
	if err != nil {
		return nil, err
	}

	conn, err := c.dialer.Dial(ctx, c.cfg.Endpoint(), c.tlsConfig, c.cfg.Timeout())
	if err != nil {
		c.logger.Error("failed to create socket: %v", err)
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Send(ctx, frame); err != nil {
		c.logger.Error("failed to send secret request: %v", err)
		return nil, err
	}

	body, err := conn.Receive(ctx)
	if err != nil {
		c.logger.Error("empty secret json response: %v", err)
		return nil, err
	}
	return body, nil
}
