package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(_ *app) *cobra.Command {
	var (
		paths    []string
		jobsFile string
	)
	cmd := &cobra.Command{
		Use:   "validate (-c JOB ... | --jobs-file LIST)",
		Short: "Check job documents without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := jobPaths(paths, jobsFile)
			if err != nil {
				return err
			}
			var errs []error
			for _, p := range all {
				if _, err := loadValid(p, cmd.OutOrStdout()); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", p)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringArrayVarP(&paths, "config", "c", nil, "job document (repeatable)")
	cmd.Flags().StringVar(&jobsFile, "jobs-file", "", "file listing job documents, one per line")
	return cmd
}
