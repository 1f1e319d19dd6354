package secretagent

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// Conn is a single-use connection to the agent. It carries one request and
// one response and is then closed.
type Conn interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens agent connections. TCPDialer is the production implementation;
// tests substitute in-memory ones.
type Dialer interface {
	Dial(ctx context.Context, address string, tlsConfig *tls.Config, timeout time.Duration) (Conn, error)
}

// Compile-time interface checks.
var (
	_ Dialer = TCPDialer{}
	_ Conn   = (*StreamConn)(nil)
)

// TCPDialer connects over TCP, upgrading to TLS when a TLS config is given.
type TCPDialer struct{}

// Dial implements Dialer.
func (TCPDialer) Dial(ctx context.Context, address string, tlsConfig *tls.Config, timeout time.Duration) (Conn, error) {
	return Connect(ctx, address, tlsConfig, timeout)
}

// Connect opens a TCP connection to address and, when tlsConfig is not nil,
// completes a TLS handshake on it. timeout bounds the connect and the
// handshake separately.
func Connect(ctx context.Context, address string, tlsConfig *tls.Config, timeout time.Duration) (*StreamConn, error) {
	raw, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, wrapError(KindConnectionFailed, "connect", "failed to connect to "+address, err)
	}

	if tlsConfig == nil {
		return NewStreamConn(raw, timeout), nil
	}

	tlsConn := tls.Client(raw, tlsConfig)
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		_ = raw.Close()
		return nil, wrapError(KindConnectionFailed, "connect", "tls handshake with "+address+" failed", err)
	}
	return NewStreamConn(tlsConn, timeout), nil
}

// StreamConn frames requests and responses over a net.Conn, which may be a
// *tls.Conn.
type StreamConn struct {
	conn      net.Conn
	timeout   time.Duration
	closeOnce sync.Once
	closeErr  error
}

// NewStreamConn wraps conn. Each Send and Receive gets its own deadline of
// timeout; zero disables the deadline.
func NewStreamConn(conn net.Conn, timeout time.Duration) *StreamConn {
	return &StreamConn{conn: conn, timeout: timeout}
}

// Send writes one complete frame.
func (c *StreamConn) Send(ctx context.Context, frame []byte) error {
	stop := c.arm(ctx)
	defer stop()

	if _, err := c.conn.Write(frame); err != nil {
		return wrapError(KindIO, "send", "failed to write request", causeOf(ctx, err))
	}
	return nil
}

// Receive reads one complete frame and returns its body.
func (c *StreamConn) Receive(ctx context.Context) ([]byte, error) {
	stop := c.arm(ctx)
	defer stop()

	body, err := ReadFrame(c.conn)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindIO {
			e.Err = causeOf(ctx, e.Err)
		}
		return nil, err
	}
	return body, nil
}

// Close shuts down TLS, if any, and the socket. Only the first call has
// any effect.
func (c *StreamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// arm sets the operation deadline and makes ctx cancellation expire it, so
// a blocked read or write returns promptly.
func (c *StreamConn) arm(ctx context.Context) (stop func()) {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	cancel := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() { cancel() }
}

// causeOf prefers the context error when cancellation caused err.
func causeOf(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
