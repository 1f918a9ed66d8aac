package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/YogovAI/Product-Development-Yogov/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()
	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestTags(t *testing.T) {
	t.Parallel()
	require.Nil(t, tags(nil))
	require.Equal(t, []string{"job:customers", "kind:read"}, tags(metrics.Labels{"kind": "read", "job": "customers"}))
	require.Equal(t, "records_total", metricName(metrics.RecordsTotal))
}

// TestBackendSendsToAgent points the client at a UDP socket standing in for
// the agent and checks the DogStatsD lines that arrive after Flush.
func TestBackendSendsToAgent(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), GlobalTags: []string{"env:test"}})
	require.NoError(t, err)
	defer b.Close()

	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"job": "customers", "kind": "inserted"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"job": "customers", "step": "write", "status": "success"})
	require.NoError(t, b.Flush())

	var got strings.Builder
	buf := make([]byte, 4096)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	// Counts and histograms may arrive in separate packets.
	for !strings.Contains(got.String(), "step_duration_seconds") || !strings.Contains(got.String(), "records_total") {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err, "received so far: %q", got.String())
		got.Write(buf[:n])
	}

	require.Contains(t, got.String(), "etl.records_total:3|c|#env:test,job:customers,kind:inserted")
	require.Contains(t, got.String(), "etl.step_duration_seconds:0.25|h|#env:test,job:customers,status:success,step:write")
}
