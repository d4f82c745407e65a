// Package report turns run outcomes into log lines and per-run CSV summaries.
package report

import (
	"context"
	"fmt"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"
)

// Multi forwards to every reporter in order. State changes reach those that want them.
type Multi []interfaces.ProgressReporter

var (
	_ interfaces.ProgressReporter = Multi(nil)
	_ interfaces.StateReporter    = Multi(nil)
)

func (m Multi) Record(ctx context.Context, o types.FetchOutcome) {
	for _, r := range m {
		r.Record(ctx, o)
	}
}

func (m Multi) Summarize(ctx context.Context, s types.RunSummary) {
	for _, r := range m {
		r.Summarize(ctx, s)
	}
}

func (m Multi) State(ctx context.Context, s types.RunState) {
	for _, r := range m {
		if sr, ok := r.(interfaces.StateReporter); ok {
			sr.State(ctx, s)
		}
	}
}

// LogReporter writes progress and the final summary to the process logger.
type LogReporter struct {
	runID     string
	total     int
	processed int
}

func NewLogReporter(runID string, total int) *LogReporter {
	return &LogReporter{runID: runID, total: total}
}

func (l *LogReporter) Record(ctx context.Context, o types.FetchOutcome) {
	l.processed++
	logger.Info(ctx, "Run progress",
		"run_id", l.runID,
		"date", o.Date.Format(types.DateLayout),
		"status", o.Status,
		"progress", progress(l.processed, l.total),
	)
}

func (l *LogReporter) Summarize(ctx context.Context, s types.RunSummary) {
	var c types.Counts
	for _, o := range s.Outcomes {
		c.Created += o.Created
		c.Updated += o.Updated
		c.Errored += o.Errored
	}
	logger.Info(ctx, "Run summary",
		"run_id", s.RunID,
		"state", s.State,
		"attempted", s.Attempted,
		"successful", s.Successful,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"records_created", c.Created,
		"records_updated", c.Updated,
		"records_with_errors", c.Errored,
		"coerced_fields", s.Coerced,
	)
}

func (l *LogReporter) State(ctx context.Context, s types.RunState) {
	logger.Debug(ctx, "Run state", "run_id", l.runID, "state", s)
}

func progress(n, total int) string {
	return fmt.Sprintf("%d/%d", n, total)
}
