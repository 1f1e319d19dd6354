package commands

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secagent/internal/config"
	"github.com/systmms/secagent/internal/logging"
	"github.com/systmms/secagent/tests/fakes"
	"github.com/systmms/secagent/tests/testutil"
)

func TestGetCommand_Formats(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:myres:mykey", []byte{0x01, 0x02, 0x03})
	host, port := agent.Start(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "raw", args: []string{"secrets:myres:mykey"}, want: "\x01\x02\x03"},
		{name: "base64", args: []string{"secrets:myres:mykey", "--format", "base64"}, want: "AQID"},
		{name: "hex", args: []string{"secrets:myres:mykey", "--format", "hex"}, want: "010203"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := agentConfig(t, host, port).Config()
			output, err := runCommand(t, NewGetCommand(cfg), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, output)
		})
	}
}

func TestGetCommand_OutFile(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:db-password", []byte("hunter2"))
	host, port := agent.Start(t)

	outPath := filepath.Join(t.TempDir(), "db-password")
	require.NoError(t, os.WriteFile(outPath, []byte("stale content that is longer"), 0644))

	cfg := agentConfig(t, host, port).Config()
	output, err := runCommand(t, NewGetCommand(cfg), "secrets:db-password", "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, output)

	testutil.AssertFileContents(t, outPath, "hunter2", 0600)
}

func TestGetCommand_EnvironmentOverridesFile(t *testing.T) {
	agent := fakes.NewFakeAgent().WithSecret("secrets:k", []byte("from-env"))
	host, port := agent.Start(t)

	testutil.SetupTestEnv(t, map[string]string{
		config.EnvAddress: host,
		config.EnvPort:    port,
	})

	// Missing file is fine once the environment names the agent
	cfg := &config.Config{Path: filepath.Join(t.TempDir(), "absent.yaml"), Optional: true}
	output, err := runCommand(t, NewGetCommand(cfg), "secrets:k")
	require.NoError(t, err)
	assert.Equal(t, "from-env", output)
}

func TestGetCommand_NeverLogsSecret(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:db", []byte("hunter2-super-secret"))
	host, port := agent.Start(t)

	var logs bytes.Buffer
	cfg := agentConfig(t, host, port).Config()
	cfg.Logger = logging.NewWithWriter(&logs, true, true)

	outPath := filepath.Join(t.TempDir(), "db")
	_, err := runCommand(t, NewGetCommand(cfg), "secrets:db", "--out", outPath)
	require.NoError(t, err)
	_, err = runCommand(t, NewGetCommand(cfg), "secrets:other")
	require.Error(t, err)

	testutil.AssertNoSecretLeak(t, logs.String(), []string{"hunter2", "aHVudGVyMi"})
	assert.Contains(t, logs.String(), "Wrote 20 bytes")
}

func TestGetCommand_Errors(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:present", []byte("v"))
	host, port := agent.Start(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, closedPort, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	tests := []struct {
		name    string
		port    string
		args    []string
		wantErr string
	}{
		{name: "bad identifier", port: port, args: []string{"secrets:"}, wantErr: "secrets:<resource>:<key>"},
		{name: "missing secret", port: port, args: []string{"secrets:absent"}, wantErr: "resource and key exist"},
		{name: "unsupported format", port: port, args: []string{"secrets:present", "--format", "yaml"}, wantErr: "Unsupported output format"},
		{name: "agent down", port: closedPort, args: []string{"secrets:present"}, wantErr: "secret agent error during get"},
		{name: "no argument", port: port, args: nil, wantErr: "accepts 1 arg"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := agentConfig(t, host, tt.port).Config()
			output, err := runCommand(t, NewGetCommand(cfg), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, output)
		})
	}
}

func TestGetCommand_FlagOverrides(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:k", []byte("from-override"))
	host, port := agent.Start(t)

	// The file points at a port nobody listens on
	cfg := agentConfig(t, "192.0.2.1", "1").Config()
	cfg.Overrides = config.Overrides{Address: host, Port: port, TimeoutMs: 2000}

	output, err := runCommand(t, NewGetCommand(cfg), "secrets:k")
	require.NoError(t, err)
	assert.Equal(t, "from-override", output)
}
