package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YogovAI/Product-Development-Yogov/internal/jobs"
	"github.com/YogovAI/Product-Development-Yogov/internal/logging"
)

// Settings keys. Each is a persistent flag, overridable with ETL_<KEY>
// (dashes become underscores).
const (
	keyLogLevel       = "log-level"
	keyLogFormat      = "log-format"
	keyMetricsBackend = "metrics-backend"
	keyPushgatewayURL = "pushgateway-url"
	keyDatadogAddr    = "datadog-addr"
	keyStateDSN       = "state-dsn"
)

// app is the state shared by subcommands of one invocation.
type app struct {
	v   *viper.Viper
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "etl",
		Short: "Chunked flat-file ingest, transform and load",
		Long: `etl reads CSV, JSON lines or Parquet files in chunks, applies data-quality
rules and transformations, and writes the result to a relational table
(postgres, sqlite, mssql, mysql) or a Parquet object in an S3-compatible bucket.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	pf := root.PersistentFlags()
	pf.String(keyLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(keyLogFormat, "console", "log format (console or json)")
	pf.String(keyMetricsBackend, "none", "metrics backend (none, pushgateway, datadog)")
	pf.String(keyPushgatewayURL, "http://localhost:9091", "Pushgateway base URL")
	pf.String(keyDatadogAddr, "127.0.0.1:8125", "DogStatsD address")
	pf.String(keyStateDSN, "", "job state store: empty for in-memory, sqlite://path or postgres://...")
	_ = a.v.BindPFlags(pf)

	a.v.SetEnvPrefix("ETL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	// unprefixed names kept for existing deployments.
	_ = a.v.BindEnv(keyMetricsBackend, "ETL_METRICS_BACKEND", "METRICS_BACKEND")
	_ = a.v.BindEnv(keyPushgatewayURL, "ETL_PUSHGATEWAY_URL", "PUSHGATEWAY_URL")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newInferCmd(a),
		newStatusCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	log, err := logging.New(cmd.ErrOrStderr(), a.v.GetString(keyLogFormat), a.v.GetString(keyLogLevel))
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *app) openStore(ctx context.Context) (jobs.Store, error) {
	return jobs.Open(ctx, a.v.GetString(keyStateDSN))
}
