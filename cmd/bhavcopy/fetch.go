package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bhavcopy-ingest/internal/bhavcopy"
	"bhavcopy-ingest/internal/types"

	"github.com/spf13/cobra"
)

func newFetchCmd(configPath *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and store the bhavcopy of one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				return errors.New("--date is required")
			}
			d, err := bhavcopy.ParseDate(date)
			if err != nil {
				return err
			}
			return runFetch(cmd, *configPath, d)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "trade date (dd-mm-yyyy)")
	return cmd
}

func runFetch(cmd *cobra.Command, configPath string, d time.Time) error {
	ctx := cmd.Context()
	cfg, err := initializeSystem(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	date := d.Format(types.DateLayout)
	outcome, err := a.dateOrchestrator().RunDate(ctx, d)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case types.StatusFailed:
		return fmt.Errorf("fetch %s failed: %s", date, outcome.Error)
	case types.StatusSkipped:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", date, outcome.Reason)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: created=%d updated=%d errored=%d total_rows=%d\n",
			date, outcome.Created, outcome.Updated, outcome.Errored, outcome.TotalRows)
	}
	return nil
}
