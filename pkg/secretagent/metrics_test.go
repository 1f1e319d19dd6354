package secretagent_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secagent/pkg/secretagent"
	"github.com/systmms/secagent/tests/fakes"
)

func TestClientMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := secretagent.NewMetrics(reg)

	agent := fakes.NewFakeAgent().WithSecret("secrets:ok", []byte("v"))
	client, err := secretagent.NewClient(
		secretagent.NewConfig("127.0.0.1", "3005"),
		secretagent.WithDialer(agent),
		secretagent.WithMetrics(metrics),
	)
	require.NoError(t, err)

	_, err = client.GetSecret(context.Background(), "secrets:ok")
	require.NoError(t, err)
	_, err = client.GetSecret(context.Background(), "secrets:ok")
	require.NoError(t, err)
	_, err = client.GetSecret(context.Background(), "secrets:missing")
	require.Error(t, err)
	_, err = client.GetSecret(context.Background(), "secrets:")
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "secagent_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"success": 2, "not_found": 1, "bad_request": 1}, counts)

	series, err := promtestutil.GatherAndCount(reg, "secagent_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, series)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	agent := fakes.NewFakeAgent().WithSecret("secrets:ok", []byte("v"))
	client, err := secretagent.NewClient(secretagent.NewConfig("127.0.0.1", "3005"),
		secretagent.WithDialer(agent), secretagent.WithMetrics(nil))
	require.NoError(t, err)

	_, err = client.GetSecret(context.Background(), "secrets:ok")
	assert.NoError(t, err)
}
