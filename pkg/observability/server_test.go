package observability_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/observability"
)

func TestMetricsServer_ServesHealthAndMetrics(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	srv, err := observability.NewMetricsServer("127.0.0.1:0", providers, nil)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close(context.Background())) })

	get := func(path string) *http.Response {
		req, reqErr := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+srv.Addr()+path, http.NoBody)
		require.NoError(t, reqErr)

		resp, doErr := http.DefaultClient.Do(req)
		require.NoError(t, doErr)

		t.Cleanup(func() { _ = resp.Body.Close() })

		return resp
	}

	health := get("/healthz")
	assert.Equal(t, http.StatusOK, health.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(health.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	metrics := get("/metrics")
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestMetricsServer_RequiresPrometheus(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	_, err = observability.NewMetricsServer("127.0.0.1:0", providers, nil)
	require.ErrorIs(t, err, observability.ErrMetricsDisabled)
}
