package main

import (
	"fmt"

	"bhavcopy-ingest/internal/report"

	"github.com/spf13/cobra"
)

func newSummarizeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <run-id>",
		Short: "Rebuild the CSV summary of a run from its run log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initializeSystem(*configPath)
			if err != nil {
				return err
			}
			path, err := report.FromRunLog(cfg.Reports.Dir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
