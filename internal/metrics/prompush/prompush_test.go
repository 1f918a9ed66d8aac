package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/YogovAI/Product-Development-Yogov/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	_, err := NewBackend("etl", "")
	require.Error(t, err)

	b, err := NewBackend("", "http://pushgateway:9091")
	require.NoError(t, err)
	require.Equal(t, "etl", b.group)

	b, err = NewBackend("nightly", "http://pushgateway:9091")
	require.NoError(t, err)
	require.Equal(t, "nightly", b.group)
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"job": "customers", "step": "write", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 4, metrics.Labels{"job": "customers", "kind": "read"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"job": "orders", "kind": "read"})
	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"job": "customers"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	require.Equal(t, 3.0, testutil.ToFloat64(b.steps.WithLabelValues("customers", "write", "success")))
	require.Equal(t, 4.0, testutil.ToFloat64(b.records.WithLabelValues("customers", "read")))
	require.Equal(t, 2.0, testutil.ToFloat64(b.records.WithLabelValues("orders", "read")))
	require.Equal(t, 1.0, testutil.ToFloat64(b.batches.WithLabelValues("customers")))
	n, err := testutil.GatherAndCount(b.reg)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	require.NoError(t, err)

	lbls := metrics.Labels{"job": "customers", "step": "transform", "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	require.Equal(t, 1, testutil.CollectAndCount(b.duration))
}

// TestFlush runs Flush against a fake Pushgateway.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method, path string
		body         int
	}
	reqs := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs <- pushed{r.Method, r.URL.Path, len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("etl-nightly", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"job": "customers", "step": "read", "status": "success"})

	require.NoError(t, b.Flush())
	got := <-reqs
	require.Equal(t, http.MethodPut, got.method)
	require.Equal(t, "/metrics/job/etl-nightly", got.path)
	require.Positive(t, got.body)
}

func TestFlushReportsGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("etl", srv.URL)
	require.NoError(t, err)
	require.ErrorContains(t, b.Flush(), "prompush: push to")
}
