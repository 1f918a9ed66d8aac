// Package metrics records operational metrics of ETL runs behind a small,
// backend-agnostic interface.
//
// A process installs one Backend (Prometheus Pushgateway or Datadog, see the
// subpackages); until it does, every call goes to a no-op backend, so
// instrumented code never checks whether metrics are configured. Several
// runs may record concurrently.
//
// Names and labels:
//
//	etl_step_total{job,step,status}            counter
//	etl_step_duration_seconds{job,step,status} histogram
//	etl_records_total{job,kind}                counter
//	etl_batches_total{job}                     counter
package metrics

import (
	"sync"
	"time"
)

// Metric names.
const (
	StepTotal    = "etl_step_total"
	StepDuration = "etl_step_duration_seconds"
	RecordsTotal = "etl_records_total"
	BatchesTotal = "etl_batches_total"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Steps of a run.
const (
	StepRead      = "read"
	StepQuality   = "quality"
	StepTransform = "transform"
	StepWrite     = "write"
	StepCommit    = "commit"
)

// Record kinds.
const (
	RowsRead        = "read"
	RowsQuarantined = "quarantined"
	RowsInserted    = "inserted"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is what a metrics system implements.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels) {}

func (nopBackend) ObserveHistogram(string, float64, Labels) {}

func (nopBackend) Flush() error { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. Passing nil keeps the current backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of step and observes its latency.
func RecordStep(job, step string, err error, d time.Duration) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Step starts timing step; the returned func records it with the step's
// outcome:
//
//	done := metrics.Step(job, metrics.StepWrite)
//	n, err := sink.Write(ctx, b)
//	done(err)
func Step(job, step string) func(error) {
	start := time.Now()
	return func(err error) {
		RecordStep(job, step, err, time.Since(start))
	}
}

// RecordRows adds delta rows of kind. Non-positive deltas are ignored.
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta processed batches.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
