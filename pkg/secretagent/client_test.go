package secretagent_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secagent/pkg/secretagent"
	"github.com/systmms/secagent/tests/fakes"
	"github.com/systmms/secagent/tests/testutil"
)

func newPipeClient(t *testing.T, agent *fakes.FakeAgent, logger secretagent.Logger, timeoutMs int) *secretagent.Client {
	t.Helper()

	cfg := secretagent.NewConfig("127.0.0.1", "3005")
	cfg.TimeoutMs = timeoutMs
	client, err := secretagent.NewClient(cfg, secretagent.WithDialer(agent), secretagent.WithLogger(logger))
	require.NoError(t, err)
	return client
}

func TestGetSecretEndToEnd(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:myres:mykey", []byte{0x01, 0x02, 0x03})
	host, port := agent.Start(t)

	cfg := secretagent.Config{Address: host, Port: port, TimeoutMs: 1000}
	logger := testutil.NewTestLogger(t)
	client, err := secretagent.NewClient(cfg, secretagent.WithLogger(logger))
	require.NoError(t, err)

	payload, err := client.GetSecret(context.Background(), "secrets:myres:mykey")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, payload.Bytes())
	assert.Equal(t, 3, payload.Len())

	requests := agent.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, secretagent.SecretPath{Resource: "myres", HasResource: true, Key: "mykey"}, requests[0])
	logger.AssertLogCount(t, "error", 0)
}

func TestGetSecretWithoutResource(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:api-token", []byte("tok-123"))
	client := newPipeClient(t, agent, nil, 1000)

	payload, err := client.GetSecret(context.Background(), "secrets:api-token")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok-123"), payload.Bytes())

	requests := agent.Requests()
	require.Len(t, requests, 1)
	assert.False(t, requests[0].HasResource)
	assert.Equal(t, "api-token", requests[0].Key)
	assert.Equal(t, 1, agent.Closes())
}

func TestGetSecretBadRequestOpensNoConnection(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent()
	logger := testutil.NewTestLogger(t)
	client := newPipeClient(t, agent, logger, 1000)

	for _, path := range []string{"secrets:", "secrets:res:", "nope"} {
		payload, err := client.GetSecret(context.Background(), path)
		assert.Nil(t, payload)
		assert.True(t, errors.Is(err, secretagent.ErrBadRequest), "path %q", path)
	}

	assert.Equal(t, 0, agent.Dials())
	assert.Equal(t, 0, agent.Closes())
	logger.AssertLogCount(t, "error", 3)
}

// Bytes that are not UTF-8 must not be rewritten into another key.
func TestGetSecretRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:key\ufffd", []byte("someone-elses-secret"))
	logger := testutil.NewTestLogger(t)
	client := newPipeClient(t, agent, logger, 1000)

	for _, path := range []string{"secrets:key\xfe", "secrets:key\xff", "secrets:res\xff:key"} {
		payload, err := client.GetSecret(context.Background(), path)
		assert.Nil(t, payload)
		assert.True(t, errors.Is(err, secretagent.ErrBadRequest), "path %q", path)
	}

	assert.Equal(t, 0, agent.Dials())
	assert.Empty(t, agent.Requests())
	logger.AssertLogCount(t, "error", 3)
	logger.AssertNotContains(t, "someone-elses-secret")
}

func TestGetSecretNotFoundLogLine(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent()
	logger := testutil.NewTestLogger(t)
	client := newPipeClient(t, agent, logger, 1000)

	_, err := client.GetSecret(context.Background(), "secrets:res:absent")
	require.True(t, errors.Is(err, secretagent.ErrNotFound))

	entries := logger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, err.Error(), entries[0].Message)
	assert.Equal(t, 1, strings.Count(entries[0].Message, "unable to fetch secret"))
	assert.Contains(t, entries[0].Message, "agent error: secret not found")
}

func TestGetSecretConnectionFailed(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithDialError(errors.New("connection refused"))
	logger := testutil.NewTestLogger(t)
	client := newPipeClient(t, agent, logger, 1000)

	payload, err := client.GetSecret(context.Background(), "secrets:key")
	assert.Nil(t, payload)
	assert.True(t, errors.Is(err, secretagent.ErrConnectionFailed))
	assert.Equal(t, 0, agent.Closes())
	logger.AssertLogCount(t, "error", 1)
	logger.AssertContains(t, "failed to create socket")
}

// Every failure after a successful connect must close the connection once.
func TestGetSecretClosesConnectionOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*fakes.FakeAgent)
		kind  secretagent.Kind
	}{
		{
			name:  "send fails",
			setup: func(a *fakes.FakeAgent) { a.WithBehavior(fakes.HangUp) },
			kind:  secretagent.KindIO,
		},
		{
			name:  "receive times out",
			setup: func(a *fakes.FakeAgent) { a.WithBehavior(fakes.Stall) },
			kind:  secretagent.KindIO,
		},
		{
			name:  "zero bytes",
			setup: func(a *fakes.FakeAgent) { a.WithBehavior(fakes.CloseAfterRequest) },
			kind:  secretagent.KindProtocol,
		},
		{
			name:  "non-json body",
			setup: func(a *fakes.FakeAgent) { a.WithReplyBody([]byte("definitely not json")) },
			kind:  secretagent.KindProtocol,
		},
		{
			name:  "unframed reply",
			setup: func(a *fakes.FakeAgent) { a.WithReplyBytes([]byte(`{"SecretValue":"AQID"}`)) },
			kind:  secretagent.KindProtocol,
		},
		{
			name:  "empty frame",
			setup: func(a *fakes.FakeAgent) { a.WithReplyBody(nil) },
			kind:  secretagent.KindProtocol,
		},
		{
			name:  "missing secret field",
			setup: func(a *fakes.FakeAgent) { a.WithReplyBody([]byte(`{"Version":"1"}`)) },
			kind:  secretagent.KindNotFound,
		},
		{
			name:  "unknown secret",
			setup: func(a *fakes.FakeAgent) {},
			kind:  secretagent.KindNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			agent := fakes.NewFakeAgent()
			tt.setup(agent)
			logger := testutil.NewTestLogger(t)
			client := newPipeClient(t, agent, logger, 100)

			payload, err := client.GetSecret(context.Background(), "secrets:res:key")
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.Equal(t, tt.kind, secretagent.KindOf(err), "error: %v", err)
			assert.Equal(t, 1, agent.Dials())
			assert.Equal(t, 1, agent.Closes())
			logger.AssertLogCount(t, "error", 1)

			agent.Wait()
		})
	}
}

func TestGetSecretNeverLogsSecretMaterial(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:db", []byte("hunter2-super-secret"))
	logger := testutil.NewTestLogger(t)
	client := newPipeClient(t, agent, logger, 1000)

	payload, err := client.GetSecret(context.Background(), "secrets:db")
	require.NoError(t, err)
	assert.Equal(t, "hunter2-super-secret", string(payload.Bytes()))
	testutil.AssertSecretRedacted(t, fmt.Sprintf("%v %+v %#v", payload, payload, payload), "hunter2")

	_, err = client.GetSecret(context.Background(), "secrets:missing")
	require.Error(t, err)

	logger.AssertNotContains(t, "hunter2")
	logger.AssertNotContains(t, "aHVudGVyMi")
}

func TestGetSecretHonoursCancellation(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithBehavior(fakes.Stall)
	client := newPipeClient(t, agent, nil, 60000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.GetSecret(ctx, "secrets:key")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, errors.Is(err, secretagent.ErrIO))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, agent.Closes())
	agent.Wait()
}

func TestGetSecretConcurrent(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent()
	for i := 0; i < 10; i++ {
		agent.WithSecret(fmt.Sprintf("secrets:team:key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}
	client := newPipeClient(t, agent, nil, 1000)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := i % 10
			payload, err := client.GetSecret(context.Background(), fmt.Sprintf("secrets:team:key-%d", n))
			if err != nil {
				errs <- err
				return
			}
			if got, want := string(payload.Bytes()), fmt.Sprintf("value-%d", n); got != want {
				errs <- fmt.Errorf("key-%d: got %q, want %q", n, got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 50, agent.Dials())
	assert.Equal(t, 50, agent.Closes())
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     secretagent.Config
		wantErr error
	}{
		{name: "missing address", cfg: secretagent.Config{Port: "3005"}, wantErr: secretagent.ErrInvalidConfig},
		{name: "missing port", cfg: secretagent.Config{Address: "127.0.0.1"}, wantErr: secretagent.ErrInvalidConfig},
		{name: "negative timeout", cfg: secretagent.Config{Address: "127.0.0.1", Port: "3005", TimeoutMs: -1}, wantErr: secretagent.ErrInvalidConfig},
		{name: "cert without key", cfg: secretagent.Config{Address: "127.0.0.1", Port: "3005", TLS: secretagent.TLSConfig{Enabled: true, CertFile: "c.pem"}}, wantErr: secretagent.ErrInvalidConfig},
		{name: "missing ca file", cfg: secretagent.Config{Address: "127.0.0.1", Port: "3005", TLS: secretagent.TLSConfig{Enabled: true, CAFile: "/does/not/exist.pem"}}, wantErr: secretagent.ErrInvalidTLS},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := secretagent.NewClient(tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, client)
		})
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithBehavior(fakes.HangUp)
	client := newPipeClient(t, agent, nil, 1000)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 1, agent.Closes())
	assert.Empty(t, agent.Requests())
}
