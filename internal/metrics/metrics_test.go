package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/audit"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New("")
	m.ToolCallsTotal.WithLabelValues("shell.run", "success").Inc()
	m.LLMCallsTotal.WithLabelValues("ollama", "system_status", "success").Inc()
	m.AgentRestartsTotal.WithLabelValues("watchdog").Inc()
	m.MeshMessagesTotal.WithLabelValues("heartbeat", "success").Inc()
	m.ToolCallLatencySeconds.WithLabelValues("shell.run").Observe(0.02)
	m.LLMLatencySeconds.WithLabelValues("ollama", "system_status").Observe(0.5)
	m.AgentsReady.Set(3)
	m.PeersConnected.Set(2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestHandlerServesMetricsExposition(t *testing.T) {
	m := New("jarvis")
	m.AgentsReady.Set(1)

	srv := httptest.NewServer(m.Handler(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlerAuditTailReturnsRecords(t *testing.T) {
	store, err := audit.New(audit.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	store.Append(audit.Record{Actor: "operator", Action: "tool.call", Outcome: "success"})

	m := New("jarvis")
	srv := httptest.NewServer(m.Handler(store))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/audit/tail")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHandlerAuditTailWithoutStoreIsUnavailable(t *testing.T) {
	m := New("jarvis")
	srv := httptest.NewServer(m.Handler(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/audit/tail")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
