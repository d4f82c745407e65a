package jobs

import (
	"context"
	"sync"
	"time"

	"bhavcopy-ingest/internal/batch"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"
)

const statusProcessing = "processing"

// Job is one background run. It sits between the orchestrator and the configured
// reporter so status can be read while the run progresses.
type Job struct {
	ID         string
	Year       int
	StartFrom  time.Time
	TotalDates int
	CreatedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{}
	inner  interfaces.ProgressReporter

	mu         sync.RWMutex
	state      types.RunState
	processed  int
	successful int
	failed     int
	skipped    int
	lastError  string
	summary    *types.RunSummary
}

var (
	_ interfaces.ProgressReporter = (*Job)(nil)
	_ interfaces.StateReporter    = (*Job)(nil)
)

func newJob(plan batch.Plan, cancel context.CancelFunc) *Job {
	return &Job{
		ID:         plan.RunID,
		Year:       plan.Year,
		StartFrom:  plan.StartFrom,
		TotalDates: len(plan.Dates),
		CreatedAt:  time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      types.StateIdle,
	}
}

// Status is a point-in-time view of a job.
type Status struct {
	JobID      string            `json:"job_id"`
	Status     string            `json:"status"`
	State      types.RunState    `json:"state"`
	Year       int               `json:"year"`
	StartFrom  string            `json:"start_from,omitempty"`
	TotalDates int               `json:"total_dates"`
	Processed  int               `json:"processed"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	LastError  string            `json:"last_error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Summary    *types.RunSummary `json:"summary,omitempty"`
}

func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := Status{
		JobID:      j.ID,
		Status:     statusProcessing,
		State:      j.state,
		Year:       j.Year,
		TotalDates: j.TotalDates,
		Processed:  j.processed,
		Successful: j.successful,
		Failed:     j.failed,
		Skipped:    j.skipped,
		LastError:  j.lastError,
		CreatedAt:  j.CreatedAt,
		Summary:    j.summary,
	}
	if !j.StartFrom.IsZero() {
		st.StartFrom = j.StartFrom.Format(types.DateLayout)
	}
	if j.summary != nil {
		st.Status = string(j.summary.State)
	}
	return st
}

// Done is closed once the run has stopped.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the run stops or ctx ends.
func (j *Job) Wait(ctx context.Context) (types.RunSummary, error) {
	select {
	case <-j.done:
		j.mu.RLock()
		defer j.mu.RUnlock()
		return *j.summary, nil
	case <-ctx.Done():
		return types.RunSummary{}, ctx.Err()
	}
}

func (j *Job) Record(ctx context.Context, o types.FetchOutcome) {
	j.mu.Lock()
	j.processed++
	switch o.Status {
	case types.StatusSuccess:
		j.successful++
	case types.StatusFailed:
		j.failed++
		j.lastError = o.Date.Format(types.DateLayout) + ": " + o.Error
	case types.StatusSkipped:
		j.skipped++
	}
	j.mu.Unlock()

	if j.inner != nil {
		j.inner.Record(ctx, o)
	}
}

func (j *Job) Summarize(ctx context.Context, s types.RunSummary) {
	if j.inner != nil {
		j.inner.Summarize(ctx, s)
	}
}

func (j *Job) State(ctx context.Context, s types.RunState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()

	if sr, ok := j.inner.(interfaces.StateReporter); ok {
		sr.State(ctx, s)
	}
}

func (j *Job) finish(s types.RunSummary) {
	j.mu.Lock()
	j.summary = &s
	j.state = s.State
	if s.AbortReason != "" && s.State == types.StateAborted {
		j.lastError = s.AbortReason
	}
	j.mu.Unlock()
	close(j.done)
}
