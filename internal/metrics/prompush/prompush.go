// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Collectors live in a private registry that Flush pushes to the gateway
// under one grouping job. The ETL job name is a regular label, so several
// runs in one process push into the same group without overwriting each
// other.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/YogovAI/Product-Development-Yogov/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	group      string // Pushgateway "job" grouping key
	reg        *prometheus.Registry

	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
	batches  *prometheus.CounterVec
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend builds a backend pushing to gatewayURL under group ("etl"
// when empty).
func NewBackend(group, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if group == "" {
		group = "etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		group:      group,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "ETL step executions by job, step and status.",
		}, []string{"job_name", "step", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "ETL step latency in seconds by job, step and status.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"job_name", "step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows by job and kind (read, quarantined, inserted).",
		}, []string{"job_name", "kind"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches fully processed by job.",
		}, []string{"job_name"}),
	}

	for _, c := range []prometheus.Collector{b.steps, b.duration, b.records, b.batches} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// IncCounter routes known counters; unknown names are ignored. The job
// label is renamed job_name because the gateway reserves job for grouping.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["job"], labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(labels["job"], labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batches.WithLabelValues(labels["job"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.duration.WithLabelValues(labels["job"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the group.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.group).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
