// Package jobs runs batch runs in the background and keeps their status queryable.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"bhavcopy-ingest/internal/batch"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrShuttingDown = errors.New("supervisor is shutting down")
	ErrNoDates      = errors.New("no business days to fetch")
)

// Runner executes one plan to completion.
type Runner interface {
	Run(ctx context.Context, plan batch.Plan, reporter interfaces.ProgressReporter) types.RunSummary
}

// ReporterFactory builds the reporter a run writes its progress to. It may return nil.
type ReporterFactory func(plan batch.Plan) interfaces.ProgressReporter

// Request describes a yearly run.
type Request struct {
	Year      int
	StartFrom time.Time
}

type Supervisor struct {
	runner    Runner
	reporters ReporterFactory
	retention time.Duration
	registry  *cache.Cache

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type Option func(*Supervisor)

func WithReporters(f ReporterFactory) Option {
	return func(s *Supervisor) { s.reporters = f }
}

// NewSupervisor keeps finished jobs queryable for retention.
func NewSupervisor(runner Runner, retention time.Duration, opts ...Option) *Supervisor {
	if retention <= 0 {
		retention = time.Hour
	}
	base, stop := context.WithCancel(context.Background())
	s := &Supervisor{
		runner:    runner,
		retention: retention,
		registry:  cache.New(retention, retention),
		base:      base,
		stop:      stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers a job for req and runs it in the background.
func (s *Supervisor) Start(req Request) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrShuttingDown
	}

	id := uuid.NewString()
	plan := batch.YearPlan(id, req.Year, req.StartFrom)
	if len(plan.Dates) == 0 {
		return nil, ErrNoDates
	}

	ctx, cancel := context.WithCancel(s.base)
	job := newJob(plan, cancel)
	if s.reporters != nil {
		job.inner = s.reporters(plan)
	}
	s.registry.Set(id, job, cache.NoExpiration)

	logger.Info(ctx, "Job started",
		"job_id", id,
		"year", req.Year,
		"total_dates", len(plan.Dates),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		summary := s.runner.Run(ctx, plan, job)
		job.finish(summary)
		s.registry.Set(id, job, s.retention)

		logger.Info(context.Background(), "Job finished",
			"job_id", id,
			"state", summary.State,
			"successful", summary.Successful,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
		)
	}()

	return job, nil
}

func (s *Supervisor) Get(id string) (*Job, bool) {
	v, ok := s.registry.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// Cancel asks a running job to stop. Cancelling a finished job is a no-op.
func (s *Supervisor) Cancel(id string) (*Job, error) {
	job, ok := s.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	job.cancel()
	logger.Info(context.Background(), "Job cancellation requested", "job_id", id)
	return job, nil
}

// Jobs returns every job still in the registry.
func (s *Supervisor) Jobs() []*Job {
	items := s.registry.Items()
	out := make([]*Job, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*Job))
	}
	return out
}

// Shutdown cancels all jobs and waits for them until ctx is done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
