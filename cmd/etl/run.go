package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/datasource/file"
	"github.com/YogovAI/Product-Development-Yogov/internal/metrics"
	"github.com/YogovAI/Product-Development-Yogov/internal/metrics/datadog"
	"github.com/YogovAI/Product-Development-Yogov/internal/metrics/prompush"
	"github.com/YogovAI/Product-Development-Yogov/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		paths     []string
		jobsFile  string
		chunkSize int
	)
	cmd := &cobra.Command{
		Use:   "run (-c JOB ... | --jobs-file LIST)",
		Short: "Validate and run one or more jobs",
		Long: `run validates every job document first and runs none of them if any is
invalid. Jobs then run concurrently, each as its own run with its own reader
and sink.`,
		Example: `  etl run -c jobs/customers.yaml
  ETL_STATE_DSN=sqlite://state.db etl run -c a.yaml -c b.yaml --chunk-size 5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := jobPaths(paths, jobsFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var specs []pipeline.Spec
			for _, p := range all {
				job, err := loadValid(p, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				specs = append(specs, pipeline.Spec{Job: job, ChunkSize: chunkSize})
			}

			flush, err := a.setupMetrics()
			if err != nil {
				return err
			}
			defer flush()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := pipeline.NewRunner(store, a.log)
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			var g errgroup.Group
			for _, spec := range specs {
				g.Go(func() error {
					res, err := runner.Run(ctx, spec)
					mu.Lock()
					printResult(out, spec.Job.Name, res, err)
					mu.Unlock()
					if err != nil {
						return fmt.Errorf("job %s: %w", spec.Job.Name, err)
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringArrayVarP(&paths, "config", "c", nil, "job document (repeatable)")
	cmd.Flags().StringVar(&jobsFile, "jobs-file", "", "file listing job documents, one per line")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "rows per chunk; overrides runtime.chunk_size")
	return cmd
}

// jobPaths merges -c paths with the entries of a jobs file.
func jobPaths(paths []string, jobsFile string) ([]string, error) {
	out := slices.Clone(paths)
	if jobsFile != "" {
		listed, err := file.ReadJobList(jobsFile)
		if err != nil {
			return nil, err
		}
		out = append(out, listed...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no job documents: pass -c or --jobs-file")
	}
	return out, nil
}

// loadValid loads a job and prints its issues to w. Warnings pass.
func loadValid(path string, w io.Writer) (*config.Job, error) {
	job, err := config.LoadJob(path)
	if err != nil {
		return nil, err
	}
	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s: %s\n", path, iss.Severity, iss.Path, iss.Message)
	}
	if err := config.Err(issues); err != nil {
		return nil, fmt.Errorf("%s is invalid: %w", path, err)
	}
	return job, nil
}

func printResult(w io.Writer, job string, res pipeline.Result, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	fmt.Fprintf(w, "job=%s run=%s status=%s target=%s read=%d quarantined=%d inserted=%d columns=%d elapsed=%s\n",
		job, res.RunID, status, res.Target, res.RowsRead, res.RowsQuarantined, res.RowsInserted,
		res.ColumnCount(), res.Duration.Truncate(time.Millisecond))
}

// setupMetrics installs the configured backend. The returned func flushes
// it and must be called once the runs are done.
func (a *app) setupMetrics() (func(), error) {
	name := strings.ToLower(strings.TrimSpace(a.v.GetString(keyMetricsBackend)))
	log := a.log.With().Str("component", "metrics").Str("backend", name).Logger()

	var closeFn func() error
	switch name {
	case "", "none":
		log.Debug().Msg("metrics disabled")
		return func() {}, nil
	case "pushgateway":
		b, err := prompush.NewBackend("etl", a.v.GetString(keyPushgatewayURL))
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		log.Info().Str("url", a.v.GetString(keyPushgatewayURL)).Msg("metrics enabled")
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: a.v.GetString(keyDatadogAddr)})
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		closeFn = b.Close
		log.Info().Str("addr", a.v.GetString(keyDatadogAddr)).Msg("metrics enabled")
	default:
		return nil, fmt.Errorf("unknown metrics backend %q (want none, pushgateway or datadog)", name)
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("flush metrics")
		}
		if closeFn != nil {
			if err := closeFn(); err != nil {
				log.Warn().Err(err).Msg("close metrics")
			}
		}
	}, nil
}
