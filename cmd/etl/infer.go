package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/reader"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

func newInferCmd(_ *app) *cobra.Command {
	var (
		src  config.SourceConfig
		rows int
	)
	cmd := &cobra.Command{
		Use:   "infer --path FILE [--format csv]",
		Short: "Print the schema inferred from the first chunk of a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			desc, err := reader.FromConfig(&src)
			if err != nil {
				return err
			}
			rd, err := reader.Open(ctx, desc, rows)
			if err != nil {
				return err
			}
			defer rd.Close()

			b, err := rd.Next(ctx)
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%s has no rows", rd.Name())
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tTYPE")
			for _, c := range schema.Infer(b) {
				fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Type)
			}
			fmt.Fprintf(tw, "\n%d rows sampled\n", b.Len())
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&src.Path, "path", "", "source file")
	f.StringVar(&src.Format, "format", "csv", "csv, json, jsonl or parquet")
	f.IntVar(&rows, "rows", 1000, "rows to sample")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
