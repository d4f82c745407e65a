// Package batch drives a run over a range of trading dates: one session, one fetch per
// date, strictly in order, with session refresh and a fixed delay between requests.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bhavcopy-ingest/internal/bhavcopy"
	"bhavcopy-ingest/internal/config"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"
)

// ErrSessionUnavailable is returned when no upstream session could be established.
var ErrSessionUnavailable = errors.New("upstream session unavailable")

const reasonNoData = "no data"

// Config is the pacing of a run.
type Config struct {
	RefreshInterval int
	RequestDelay    time.Duration
	RefreshBackoff  time.Duration
	RefreshRetries  int
}

func ConfigFrom(b config.Batch) Config {
	return Config{
		RefreshInterval: b.RefreshInterval,
		RequestDelay:    b.RequestDelay(),
		RefreshBackoff:  b.RefreshBackoff(),
		RefreshRetries:  b.RefreshRetries,
	}
}

// Plan is what a run will attempt.
type Plan struct {
	RunID     string
	Year      int
	StartFrom time.Time
	Dates     []time.Time
}

// YearPlan lists the business days of year from startFrom on.
func YearPlan(runID string, year int, startFrom time.Time) Plan {
	return Plan{
		RunID:     runID,
		Year:      year,
		StartFrom: startFrom,
		Dates:     bhavcopy.BusinessDays(year, startFrom),
	}
}

type Orchestrator struct {
	cfg        Config
	upstream   interfaces.Upstream
	normalizer interfaces.Normalizer
	sink       interfaces.Sink
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

type Option func(*Orchestrator)

// WithSleeper replaces the inter-request wait.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func WithNormalizer(n interfaces.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

func New(cfg Config, upstream interfaces.Upstream, sink interfaces.Sink, opts ...Option) *Orchestrator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 50
	}
	o := &Orchestrator{
		cfg:        cfg,
		upstream:   upstream,
		normalizer: bhavcopy.NewNormalizer(),
		sink:       sink,
		sleep:      sleepCtx,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run attempts every date of plan in order and always returns a summary. The terminal
// state is Completed, Aborted (no session could be obtained) or Cancelled (ctx done).
func (o *Orchestrator) Run(ctx context.Context, plan Plan, reporter interfaces.ProgressReporter) types.RunSummary {
	r := &run{
		reporter: reporter,
		summary: types.RunSummary{
			RunID:       plan.RunID,
			Year:        plan.Year,
			TargetDates: len(plan.Dates),
			StartedAt:   o.now(),
			State:       types.StateIdle,
		},
	}
	if reporter == nil {
		r.reporter = nopReporter{}
	}
	if sr, ok := r.reporter.(interfaces.StateReporter); ok {
		r.states = sr
	}
	if !plan.StartFrom.IsZero() {
		r.summary.StartFrom = plan.StartFrom.Format(types.DateLayout)
	}

	logger.Info(ctx, "Batch run starting",
		"run_id", plan.RunID,
		"year", plan.Year,
		"start_from", r.summary.StartFrom,
		"target_dates", len(plan.Dates),
	)

	r.transition(ctx, types.StateSessionEstablishing)
	sess, err := o.upstream.Establish(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish(ctx, r, types.StateCancelled, "cancelled before the first request")
		}
		return o.finish(ctx, r, types.StateAborted, fmt.Sprintf("%v: %v", ErrSessionUnavailable, err))
	}
	r.transition(ctx, types.StateRunning)

	forceRefresh := false
	for i, date := range plan.Dates {
		if ctx.Err() != nil {
			return o.finish(ctx, r, types.StateCancelled, "cancelled")
		}

		if forceRefresh || sess.Requests() >= o.cfg.RefreshInterval {
			r.transition(ctx, types.StateSessionRefreshing)
			next, err := o.refresh(ctx, sess.Requests())
			if err != nil {
				if ctx.Err() != nil {
					return o.finish(ctx, r, types.StateCancelled, "cancelled during session refresh")
				}
				return o.finish(ctx, r, types.StateAborted,
					fmt.Sprintf("session refresh failed after %d attempts: %v", o.cfg.RefreshRetries+1, err))
			}
			sess, forceRefresh = next, false
			r.transition(ctx, types.StateRunning)
		}

		outcome, expired, interrupted := o.processDate(ctx, sess, date)
		if interrupted {
			return o.finish(ctx, r, types.StateCancelled, "cancelled")
		}
		sess.Touch()
		forceRefresh = expired

		r.summary.Add(outcome)
		logger.Outcome(ctx, outcome, "run_id", plan.RunID)
		r.reporter.Record(ctx, outcome)

		if i < len(plan.Dates)-1 {
			if err := o.sleep(ctx, o.cfg.RequestDelay); err != nil {
				return o.finish(ctx, r, types.StateCancelled, "cancelled")
			}
		}
	}

	return o.finish(ctx, r, types.StateCompleted, "")
}

// RunDate fetches and persists a single date with its own session.
// A failed handshake is returned as an error wrapping ErrSessionUnavailable.
func (o *Orchestrator) RunDate(ctx context.Context, date time.Time) (types.FetchOutcome, error) {
	sess, err := o.upstream.Establish(ctx)
	if err != nil {
		return types.FetchOutcome{Date: date, Status: types.StatusFailed, Error: err.Error(), StatusCode: httpStatus(err)},
			fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	outcome, _, interrupted := o.processDate(ctx, sess, date)
	if interrupted {
		return outcome, ctx.Err()
	}
	sess.Touch()
	logger.Outcome(ctx, outcome)
	return outcome, nil
}

// processDate performs exactly one fetch for date. interrupted is true when ctx ended
// during the fetch; such an attempt is not recorded.
func (o *Orchestrator) processDate(ctx context.Context, sess interfaces.Session, date time.Time) (outcome types.FetchOutcome, sessionExpired, interrupted bool) {
	outcome = types.FetchOutcome{Date: date}

	payload, err := o.upstream.FetchDate(ctx, sess, date)
	if err != nil {
		if ctx.Err() != nil {
			return outcome, false, true
		}
		outcome.Status = types.StatusFailed
		outcome.Error = err.Error()
		outcome.StatusCode = httpStatus(err)
		return outcome, isSessionExpired(err), false
	}

	batch, err := o.normalizer.Normalize(payload)
	if err != nil {
		outcome.Status = types.StatusFailed
		outcome.Error = err.Error()
		return outcome, false, false
	}
	outcome.TotalRows = len(batch.Records)
	outcome.Coerced = batch.Coerced
	if len(batch.Records) == 0 {
		outcome.Status = types.StatusSkipped
		outcome.Reason = reasonNoData
		return outcome, false, false
	}

	// a fetched date is written completely even if the run is being cancelled
	counts, err := o.sink.Apply(context.WithoutCancel(ctx), batch.Records)
	if err != nil {
		outcome.Status = types.StatusFailed
		outcome.Error = fmt.Sprintf("persist: %v", err)
		return outcome, false, false
	}
	outcome.Status = types.StatusSuccess
	outcome.Counts = counts
	return outcome, false, false
}

func (o *Orchestrator) finish(ctx context.Context, r *run, state types.RunState, reason string) types.RunSummary {
	r.transition(ctx, state)
	r.summary.State = state
	r.summary.AbortReason = reason
	r.summary.FinishedAt = o.now()

	fields := []any{
		"run_id", r.summary.RunID,
		"state", state,
		"target_dates", r.summary.TargetDates,
		"attempted", r.summary.Attempted,
		"successful", r.summary.Successful,
		"failed", r.summary.Failed,
		"skipped", r.summary.Skipped,
		"coerced_fields", r.summary.Coerced,
		"duration", r.summary.FinishedAt.Sub(r.summary.StartedAt).String(),
	}
	if state == types.StateCompleted {
		logger.Info(ctx, "Batch run finished", fields...)
	} else {
		logger.Warn(ctx, "Batch run stopped early", append(fields, "reason", reason)...)
	}

	r.reporter.Summarize(ctx, r.summary)
	return r.summary
}

type run struct {
	reporter interfaces.ProgressReporter
	states   interfaces.StateReporter
	summary  types.RunSummary
}

func (r *run) transition(ctx context.Context, s types.RunState) {
	if r.summary.State == s {
		return
	}
	logger.Debug(ctx, "Run state changed", "run_id", r.summary.RunID, "from", r.summary.State, "to", s)
	r.summary.State = s
	if r.states != nil {
		r.states.State(ctx, s)
	}
}

type nopReporter struct{}

func (nopReporter) Record(context.Context, types.FetchOutcome) {}
func (nopReporter) Summarize(context.Context, types.RunSummary) {}

func isSessionExpired(err error) bool {
	var se interface{ SessionExpired() bool }
	return errors.As(err, &se) && se.SessionExpired()
}

func httpStatus(err error) int {
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
