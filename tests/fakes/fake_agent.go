package fakes

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/systmms/secagent/pkg/secretagent"
)

// Behavior selects how FakeAgent answers a connection.
type Behavior int

const (
	// ServeSecrets answers from the configured secrets, or with an Error
	// response for unknown paths.
	ServeSecrets Behavior = iota
	// ReplyBody answers with a well-formed frame around the configured body.
	ReplyBody
	// ReplyBytes writes the configured bytes verbatim, without framing.
	ReplyBytes
	// HangUp closes the connection before reading the request.
	HangUp
	// CloseAfterRequest reads the request and closes without answering.
	CloseAfterRequest
	// Stall reads the request and never answers.
	Stall
)

// Compile-time interface checks.
var (
	_ secretagent.Dialer = (*FakeAgent)(nil)
	_ secretagent.Conn   = (*countingConn)(nil)
)

// FakeAgent is an in-process secrets agent.
//
// As a secretagent.Dialer it serves each Dial over a net.Pipe and counts
// the Close calls made on the returned connections. Start serves the same
// behaviour on a loopback TCP listener.
type FakeAgent struct {
	mu        sync.Mutex
	secrets   map[string][]byte // identifier -> value
	behavior  Behavior
	reply     []byte
	tlsConfig *tls.Config
	dialErr   error

	requests []secretagent.SecretPath
	dials    int
	closes   int

	wg sync.WaitGroup
}

// NewFakeAgent creates an agent with no secrets that serves ServeSecrets.
func NewFakeAgent() *FakeAgent {
	return &FakeAgent{secrets: make(map[string][]byte)}
}

// WithSecret stores value under path, e.g. "secrets:prod:db-password".
func (f *FakeAgent) WithSecret(path string, value []byte) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.secrets[path] = append([]byte(nil), value...)
	return f
}

// WithBehavior sets how connections are answered.
func (f *FakeAgent) WithBehavior(b Behavior) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.behavior = b
	return f
}

// WithReplyBody answers every request with body inside a valid frame.
func (f *FakeAgent) WithReplyBody(body []byte) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.behavior = ReplyBody
	f.reply = body
	return f
}

// WithReplyBytes answers every request with raw, unframed bytes.
func (f *FakeAgent) WithReplyBytes(raw []byte) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.behavior = ReplyBytes
	f.reply = raw
	return f
}

// WithTLS makes Start serve TLS with cfg.
func (f *FakeAgent) WithTLS(cfg *tls.Config) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tlsConfig = cfg
	return f
}

// WithDialError makes Dial fail with err.
func (f *FakeAgent) WithDialError(err error) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dialErr = err
	return f
}

// Dial implements secretagent.Dialer over an in-memory pipe. The address
// and TLS settings are ignored.
func (f *FakeAgent) Dial(ctx context.Context, address string, tlsConfig *tls.Config, timeout time.Duration) (secretagent.Conn, error) {
	f.mu.Lock()
	f.dials++
	dialErr := f.dialErr
	f.mu.Unlock()

	if dialErr != nil {
		return nil, &secretagent.Error{Kind: secretagent.KindConnectionFailed, Op: "connect", Err: dialErr}
	}

	client, server := net.Pipe()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.Serve(server)
	}()
	return &countingConn{StreamConn: secretagent.NewStreamConn(client, timeout), agent: f}, nil
}

// Start serves the agent on a loopback TCP port until the test ends and
// returns the host and port to dial.
func (f *FakeAgent) Start(t *testing.T) (host, port string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake agent listen: %v", err)
	}

	f.mu.Lock()
	tlsConfig := f.tlsConfig
	f.mu.Unlock()
	if tlsConfig != nil {
		listener = tls.NewListener(listener, tlsConfig)
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				f.Serve(conn)
			}()
		}
	}()

	t.Cleanup(func() {
		_ = listener.Close()
		f.wg.Wait()
	})

	host, port, err = net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("fake agent address: %v", err)
	}
	return host, port
}

// Serve answers one connection according to the configured behaviour and
// closes it.
func (f *FakeAgent) Serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	f.mu.Lock()
	behavior := f.behavior
	reply := f.reply
	f.mu.Unlock()

	if behavior == HangUp {
		return
	}

	body, err := secretagent.ReadFrame(conn)
	if err != nil {
		return
	}
	path, err := secretagent.DecodeRequest(body)
	if err != nil {
		f.write(conn, secretagent.Response{Error: err.Error()})
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, path)
	value, found := f.secrets[path.String()]
	f.mu.Unlock()

	switch behavior {
	case CloseAfterRequest:
		return
	case Stall:
		// Blocks until the client gives up and closes its end.
		_, _ = io.Copy(io.Discard, conn)
	case ReplyBytes:
		_, _ = conn.Write(reply)
	case ReplyBody:
		_, _ = conn.Write(frameBody(reply))
	default:
		if !found {
			f.write(conn, secretagent.Response{Error: "secret not found"})
			return
		}
		f.write(conn, secretagent.NewSecretResponse(value))
	}
}

func (f *FakeAgent) write(conn net.Conn, resp secretagent.Response) {
	frame, err := secretagent.EncodeResponse(resp)
	if err != nil {
		return
	}
	_, _ = conn.Write(frame)
}

// Requests returns the decoded requests received so far.
func (f *FakeAgent) Requests() []secretagent.SecretPath {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]secretagent.SecretPath(nil), f.requests...)
}

// Dials returns how many times Dial was called.
func (f *FakeAgent) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.dials
}

// Closes returns how many times Close was called on connections returned
// by Dial, including repeated calls on the same connection.
func (f *FakeAgent) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closes
}

// Wait blocks until every connection handler has returned.
func (f *FakeAgent) Wait() {
	f.wg.Wait()
}

type countingConn struct {
	*secretagent.StreamConn
	agent *FakeAgent
}

func (c *countingConn) Close() error {
	c.agent.mu.Lock()
	c.agent.closes++
	c.agent.mu.Unlock()

	return c.StreamConn.Close()
}

// frameBody wraps body in a frame header without touching its content.
func frameBody(body []byte) []byte {
	frame := make([]byte, secretagent.HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], secretagent.Magic)
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(body)))
	copy(frame[secretagent.HeaderSize:], body)
	return frame
}
