package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"bhavcopy-ingest/internal/batch"
	"bhavcopy-ingest/internal/bhavcopy"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type yearlyOptions struct {
	startFrom string
	jsonOut   bool
}

func newYearlyCmd(configPath *string) *cobra.Command {
	var opts yearlyOptions

	cmd := &cobra.Command{
		Use:   "yearly <year>",
		Short: "Download every business day of a year in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil || year < 1994 {
				return fmt.Errorf("invalid year %q", args[0])
			}
			var from time.Time
			if opts.startFrom != "" {
				if from, err = bhavcopy.ParseDate(opts.startFrom); err != nil {
					return err
				}
			}
			return runYearly(cmd.Context(), *configPath, year, from, opts.jsonOut)
		},
	}
	cmd.Flags().StringVar(&opts.startFrom, "start-from", "", "first date to fetch (dd-mm-yyyy)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the run summary as JSON")
	return cmd
}

func runYearly(ctx context.Context, configPath string, year int, from time.Time, jsonOut bool) error {
	cfg, err := initializeSystem(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	plan := batch.YearPlan(uuid.NewString(), year, from)
	if len(plan.Dates) == 0 {
		return fmt.Errorf("no business days in %d from %s", year, from.Format(types.DateLayout))
	}

	summary := a.batchOrchestrator().Run(ctx, plan, a.reporters(plan))

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	}

	switch summary.State {
	case types.StateAborted:
		return fmt.Errorf("run aborted: %s", summary.AbortReason)
	case types.StateCancelled:
		logger.Warn(ctx, "Run cancelled", "attempted", summary.Attempted, "target_dates", summary.TargetDates)
	}
	return nil
}
