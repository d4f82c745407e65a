package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"bhavcopy-ingest/internal/batch"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"

	"github.com/stretchr/testify/require"
)

// stepRunner reports one outcome per date, pausing on release before each one.
type stepRunner struct {
	release chan struct{}
}

func (r *stepRunner) Run(ctx context.Context, plan batch.Plan, rep interfaces.ProgressReporter) types.RunSummary {
	sr := rep.(interfaces.StateReporter)
	sr.State(ctx, types.StateRunning)

	summary := types.RunSummary{RunID: plan.RunID, Year: plan.Year, TargetDates: len(plan.Dates)}
	for i, d := range plan.Dates {
		select {
		case <-ctx.Done():
			summary.State = types.StateCancelled
			rep.Summarize(ctx, summary)
			return summary
		case <-r.release:
		}
		o := types.FetchOutcome{Date: d, Status: types.StatusSuccess}
		if i == 1 {
			o = types.FetchOutcome{Date: d, Status: types.StatusFailed, Error: "status 404"}
		}
		summary.Add(o)
		rep.Record(ctx, o)
	}
	summary.State = types.StateCompleted
	rep.Summarize(ctx, summary)
	return summary
}

type countingReporter struct {
	mu        sync.Mutex
	records   int
	summaries int
}

func (c *countingReporter) Record(context.Context, types.FetchOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records++
}

func (c *countingReporter) Summarize(context.Context, types.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries++
}

func lateDecember() Request {
	// 30 and 31 December 2024
	return Request{Year: 2024, StartFrom: time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC)}
}

func TestSupervisor_RunsToCompletion(t *testing.T) {
	runner := &stepRunner{release: make(chan struct{})}
	rep := &countingReporter{}
	s := NewSupervisor(runner, time.Minute, WithReporters(func(batch.Plan) interfaces.ProgressReporter { return rep }))
	defer s.Shutdown(context.Background())

	job, err := s.Start(lateDecember())
	require.NoError(t, err)
	require.Equal(t, 2, job.TotalDates)

	st := job.Status()
	require.Equal(t, statusProcessing, st.Status)
	require.Equal(t, "30-12-2024", st.StartFrom)

	runner.release <- struct{}{}
	runner.release <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := job.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, summary.State)

	st = job.Status()
	require.Equal(t, "completed", st.Status)
	require.Equal(t, 2, st.Processed)
	require.Equal(t, 1, st.Successful)
	require.Equal(t, 1, st.Failed)
	require.Equal(t, "31-12-2024: status 404", st.LastError)
	require.NotNil(t, st.Summary)

	require.Equal(t, 2, rep.records)
	require.Equal(t, 1, rep.summaries)

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	require.Same(t, job, got)
}

func TestSupervisor_Cancel(t *testing.T) {
	runner := &stepRunner{release: make(chan struct{})}
	s := NewSupervisor(runner, time.Minute)
	defer s.Shutdown(context.Background())

	job, err := s.Start(lateDecember())
	require.NoError(t, err)

	_, err = s.Cancel(job.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := job.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, types.StateCancelled, summary.State)
	require.Equal(t, "cancelled", job.Status().Status)

	_, err = s.Cancel("no-such-job")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSupervisor_RejectsEmptyPlan(t *testing.T) {
	s := NewSupervisor(&stepRunner{}, time.Minute)
	defer s.Shutdown(context.Background())

	_, err := s.Start(Request{Year: 2024, StartFrom: time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)})
	require.ErrorIs(t, err, ErrNoDates)
}

func TestSupervisor_ShutdownCancelsRunningJobs(t *testing.T) {
	s := NewSupervisor(&stepRunner{release: make(chan struct{})}, time.Minute)

	a, err := s.Start(lateDecember())
	require.NoError(t, err)
	b, err := s.Start(lateDecember())
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
	require.Len(t, s.Jobs(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	for _, j := range []*Job{a, b} {
		select {
		case <-j.Done():
		default:
			t.Fatalf("job %s still running after shutdown", j.ID)
		}
		require.Equal(t, types.StateCancelled, j.Status().State)
	}

	_, err = s.Start(lateDecember())
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestSupervisor_FinishedJobsExpire(t *testing.T) {
	runner := &stepRunner{release: make(chan struct{}, 2)}
	runner.release <- struct{}{}
	runner.release <- struct{}{}

	s := NewSupervisor(runner, 50*time.Millisecond)
	defer s.Shutdown(context.Background())

	job, err := s.Start(lateDecember())
	require.NoError(t, err)
	<-job.Done()

	require.Eventually(t, func() bool {
		_, ok := s.Get(job.ID)
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}
