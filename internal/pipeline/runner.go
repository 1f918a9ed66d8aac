// Package pipeline runs ETL jobs: it reads a source in chunks, applies the
// quality rules and transformations to each chunk, and writes it to the
// job's sink, recording the run's state as it goes.
//
// A run is strictly sequential: each batch is fully processed (quality,
// transform, write) before the next one is read. Concurrency comes from
// running several jobs at once; every run owns its reader and sink.
//
//	read ─▶ lock+infer (first batch) ─▶ coerce ─▶ quality ─▶ transform
//	     ─▶ resolve+bootstrap (first non-empty batch) ─▶ write ─▶ … ─▶ commit
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/jobs"
	"github.com/YogovAI/Product-Development-Yogov/internal/metrics"
	"github.com/YogovAI/Product-Development-Yogov/internal/quality"
	"github.com/YogovAI/Product-Development-Yogov/internal/reader"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
	"github.com/YogovAI/Product-Development-Yogov/internal/storage"
	"github.com/YogovAI/Product-Development-Yogov/internal/transform"
)

// Spec is one run request.
type Spec struct {
	Job *config.Job
	// ChunkSize overrides the job's chunk size when > 0.
	ChunkSize int
}

// Result summarises a run.
type Result struct {
	RunID string
	// Target is the table or object written.
	Target          string
	Columns         []string
	RowsRead        int64
	RowsQuarantined int64
	RowsInserted    int64
	Batches         int
	Success         bool
	Duration        time.Duration
}

// ColumnCount is len(Columns).
func (r Result) ColumnCount() int { return len(r.Columns) }

// SinkOpener opens the sink for a job. storage.Open is the default.
type SinkOpener func(ctx context.Context, job *config.Job, log zerolog.Logger) (storage.Sink, error)

// ReaderOpener opens the batch reader for a job.
type ReaderOpener func(ctx context.Context, job *config.Job, chunkSize int) (*reader.Reader, error)

// Runner executes runs. It is safe for concurrent use.
type Runner struct {
	store      jobs.Store
	log        zerolog.Logger
	openSink   SinkOpener
	openReader ReaderOpener
}

// Option configures a Runner.
type Option func(*Runner)

// WithSinkOpener replaces the sink factory.
func WithSinkOpener(f SinkOpener) Option { return func(r *Runner) { r.openSink = f } }

// WithReaderOpener replaces the reader factory.
func WithReaderOpener(f ReaderOpener) Option { return func(r *Runner) { r.openReader = f } }

// NewRunner records run state in store.
func NewRunner(store jobs.Store, log zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:      store,
		log:        log,
		openSink:   storage.Open,
		openReader: openReader,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func openReader(ctx context.Context, job *config.Job, chunkSize int) (*reader.Reader, error) {
	desc, err := reader.FromConfig(job.Source)
	if err != nil {
		return nil, err
	}
	return reader.Open(ctx, desc, chunkSize)
}

// Run executes spec to completion. It detaches from ctx cancellation: once
// started, a run finishes (or fails) even if the caller goes away.
//
// The run moves pending -> running -> completed, or to failed with the
// error's message. The error that failed the run is returned unchanged.
func (r *Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	if spec.Job == nil {
		return Result{}, etlerr.New(etlerr.Config, "pipeline", "no job")
	}
	job := spec.Job

	run, err := r.store.Create(ctx, job.Name)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: create run: %w", err)
	}
	log := r.log.With().Str("job", job.Name).Str("run_id", run.ID).Logger()
	if err := r.store.Transition(ctx, run.ID, jobs.Running, jobs.Update{}); err != nil {
		return Result{RunID: run.ID}, fmt.Errorf("pipeline: start run: %w", err)
	}

	start := time.Now()
	res, runErr := r.execute(ctx, spec, log)
	res.RunID = run.ID
	res.Duration = time.Since(start)

	if runErr != nil {
		log.Error().Err(runErr).Int64("inserted", res.RowsInserted).Msg("run failed")
		if err := r.store.Transition(ctx, run.ID, jobs.Failed, jobs.Update{Message: runErr.Error(), Target: res.Target, RowsInserted: res.RowsInserted}); err != nil {
			log.Error().Err(err).Msg("record failed state")
		}
		return res, runErr
	}

	if err := r.store.Transition(ctx, run.ID, jobs.Completed, jobs.Update{Target: res.Target, RowsInserted: res.RowsInserted}); err != nil {
		return res, fmt.Errorf("pipeline: complete run: %w", err)
	}
	res.Success = true
	log.Info().
		Str("target", res.Target).
		Int64("read", res.RowsRead).
		Int64("quarantined", res.RowsQuarantined).
		Int64("inserted", res.RowsInserted).
		Int("batches", res.Batches).
		Dur("elapsed", res.Duration.Truncate(time.Millisecond)).
		Msg("run completed")
	return res, nil
}

func (r *Runner) execute(ctx context.Context, spec Spec, log zerolog.Logger) (res Result, err error) {
	job := spec.Job
	if err := config.Err(config.ValidateJob(job)); err != nil {
		return res, err
	}
	rules, err := quality.Build(job.DataQuality)
	if err != nil {
		return res, err
	}
	eval := quality.NewEvaluator(rules, log)
	pipe, err := transform.Build(job, log)
	if err != nil {
		return res, err
	}

	chunk := spec.ChunkSize
	if chunk <= 0 {
		chunk = job.ChunkSize()
	}
	rd, err := r.openReader(ctx, job, chunk)
	if err != nil {
		return res, err
	}
	defer rd.Close()

	sink, err := r.openSink(ctx, job, log)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close sink")
		}
	}()

	st := &stream{
		job:  job,
		name: tableName(job, rd.Name()),
		sink: sink,
		eval: eval,
		pipe: pipe,
		log:  log,
		res:  &res,
		t0:   time.Now(),
	}
	for {
		done := metrics.Step(job.Name, metrics.StepRead)
		b, err := rd.Next(ctx)
		if errors.Is(err, io.EOF) {
			done(nil)
			break
		}
		done(err)
		if err != nil {
			return res, err
		}
		if err := st.process(ctx, b); err != nil {
			return res, err
		}
	}

	if !st.bootstrapped && st.held != nil {
		// Every row was quarantined; the table is still created.
		if err := st.bootstrap(ctx, st.held); err != nil {
			return res, err
		}
	}
	if !st.bootstrapped {
		log.Warn().Str("source", rd.Name()).Msg("source is empty, nothing written")
		return res, nil
	}
	done := metrics.Step(job.Name, metrics.StepCommit)
	err = sink.Commit(ctx)
	done(err)
	return res, err
}

// stream carries the per-run state across batches.
type stream struct {
	job  *config.Job
	name string
	sink storage.Sink
	eval *quality.Evaluator
	pipe *transform.Pipeline
	log  zerolog.Logger
	res  *Result
	t0   time.Time

	lock         batch.Lock
	source       []schema.Column
	bootstrapped bool
	// held is the last processed batch seen before bootstrap, kept in
	// case no batch ever carries rows.
	held *batch.Batch
}

func (s *stream) process(ctx context.Context, b *batch.Batch) error {
	job := s.job.Name
	if err := s.lock.Check(b); err != nil {
		return err
	}
	if s.source == nil {
		s.source = schema.Infer(b)
	}
	schema.Coerce(b, s.source)
	s.res.RowsRead += int64(b.Len())
	metrics.RecordRows(job, metrics.RowsRead, int64(b.Len()))

	done := metrics.Step(job, metrics.StepQuality)
	b, rep, err := s.eval.Evaluate(b)
	done(err)
	if err != nil {
		return err
	}
	s.res.RowsQuarantined += int64(rep.Dropped)
	metrics.RecordRows(job, metrics.RowsQuarantined, int64(rep.Dropped))

	done = metrics.Step(job, metrics.StepTransform)
	b, err = s.pipe.Apply(b)
	done(err)
	if err != nil {
		return err
	}

	if !s.bootstrapped {
		// Derived column types are inferred from processed rows, so an
		// emptied batch cannot fix the table.
		if b.Len() == 0 {
			s.held = b
			s.res.Batches++
			metrics.RecordBatches(job, 1)
			return nil
		}
		if err := s.bootstrap(ctx, b); err != nil {
			return err
		}
	}

	done = metrics.Step(job, metrics.StepWrite)
	n, err := s.sink.Write(ctx, b)
	done(err)
	if err != nil {
		return err
	}
	s.res.RowsInserted += n
	s.res.Batches++
	metrics.RecordRows(job, metrics.RowsInserted, n)
	metrics.RecordBatches(job, 1)

	elapsed := time.Since(s.t0)
	s.log.Debug().
		Int("batch", s.res.Batches).
		Int64("rps", int64(float64(s.res.RowsInserted)/max(elapsed.Seconds(), 1e-9))).
		Int64("inserted", n).
		Int64("total_inserted", s.res.RowsInserted).
		Dur("elapsed", elapsed.Truncate(time.Millisecond)).
		Msg("batch written")
	return nil
}

func (s *stream) bootstrap(ctx context.Context, b *batch.Batch) error {
	table := schema.Resolve(s.name, b, s.source, s.job.Template)
	if err := s.sink.Bootstrap(ctx, table); err != nil {
		return err
	}
	s.bootstrapped = true
	s.res.Target = s.sink.Target()
	s.res.Columns = table.Names()
	s.log.Info().Str("target", s.res.Target).Strs("columns", s.res.Columns).Msg("sink bootstrapped")
	return nil
}

// tableName picks the relational table (or lake table label): the target's
// table, then the template's entity name, then the source file's stem.
func tableName(job *config.Job, source string) string {
	if rt := job.Target.Relational; rt != nil && rt.Table != "" {
		return rt.Table
	}
	if job.Template != nil && job.Template.TargetEntityName != "" {
		return job.Template.TargetEntityName
	}
	return strings.TrimSuffix(source, filepath.Ext(source))
}
