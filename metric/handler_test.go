package metric

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/health"
)

func TestServer_MetricsEndpoint(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordConnection(true)

	srv := httptest.NewServer(NewServer(0, "", registry, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "agentwire_connection_up 1")
}

func TestServer_HealthWithoutMonitor(t *testing.T) {
	srv := httptest.NewServer(NewServer(0, "", NewMetricsRegistry(), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_HealthReflectsMonitor(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("websocket", "connected")

	srv := httptest.NewServer(NewServer(0, "", NewMetricsRegistry(), monitor).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.IsHealthy())
	require.Len(t, status.SubStatuses, 1)

	monitor.UpdateUnhealthy("websocket", "reconnect attempts exhausted")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_StartTwiceAndStop(t *testing.T) {
	assert.NoError(t, NewServer(0, "", NewMetricsRegistry(), nil).Stop())

	s := NewServer(0, "", nil, nil)
	err := s.Start()
	require.Error(t, err)

	assert.Equal(t, "http://localhost:9090/metrics", s.Address())
}
