package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend.
type fakeBackend struct {
	mu sync.Mutex

	counters   []call
	histograms []call
	flushes    int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// install swaps the global backend for the duration of a test. Tests using
// it must not run in parallel.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(orig) })
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("customers", StepRead, nil, 2*time.Second)
	RecordStep("orders", StepWrite, errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)

	require.Equal(t, call{StepTotal, 1, Labels{"job": "customers", "step": "read", "status": "success"}}, fb.counters[0])
	require.Equal(t, StepDuration, fb.histograms[0].name)
	require.InDelta(t, 2.0, fb.histograms[0].value, 0.001)

	require.Equal(t, "failure", fb.counters[1].labels["status"])
	require.InDelta(t, 1.5, fb.histograms[1].value, 0.001)
}

func TestStepTimer(t *testing.T) {
	fb := install(t)

	done := Step("customers", StepCommit)
	done(nil)

	require.Len(t, fb.histograms, 1)
	require.Equal(t, "commit", fb.histograms[0].labels["step"])
	require.GreaterOrEqual(t, fb.histograms[0].value, 0.0)
}

func TestRecordRowsAndBatches(t *testing.T) {
	fb := install(t)

	RecordRows("customers", RowsRead, 4)
	RecordRows("customers", RowsQuarantined, 0)
	RecordRows("customers", RowsInserted, 2)
	RecordBatches("customers", 1)
	RecordBatches("customers", -1)

	require.Equal(t, []call{
		{RecordsTotal, 4, Labels{"job": "customers", "kind": "read"}},
		{RecordsTotal, 2, Labels{"job": "customers", "kind": "inserted"}},
		{BatchesTotal, 1, Labels{"job": "customers"}},
	}, fb.counters)
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	require.NoError(t, Flush())
	require.Equal(t, 1, fb.flushes)

	SetBackend(nil)
	require.Same(t, fb, current())
}

func TestConcurrentRecording(t *testing.T) {
	fb := install(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordRows("j", RowsRead, 1)
		}()
	}
	wg.Wait()
	require.Len(t, fb.counters, 8)
}
