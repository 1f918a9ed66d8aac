package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status RUN_ID",
		Short: "Show a run's state and transitions",
		Long:  "status reads the job state store selected by --state-dsn.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			hist, err := store.History(ctx, run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:      %s\njob:      %s\nstate:    %s\ntarget:   %s\ninserted: %d\n",
				run.ID, run.Job, run.State, run.Target, run.RowsInserted)
			if run.Message != "" {
				fmt.Fprintf(out, "message:  %s\n", run.Message)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nSEQ\tFROM\tTO\tAT")
			for _, t := range hist {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.Seq, t.From, t.To, t.At.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
