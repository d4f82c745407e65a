package main

import (
	"context"
	"fmt"
	"os"

	"bhavcopy-ingest/internal/batch"
	"bhavcopy-ingest/internal/config"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/report"
	"bhavcopy-ingest/internal/runlog"
	"bhavcopy-ingest/internal/sink"
	"bhavcopy-ingest/internal/sink/sinkobs"
	"bhavcopy-ingest/internal/trace"
	"bhavcopy-ingest/internal/upstream"
	"bhavcopy-ingest/internal/upstream/upstreamobs"

	"github.com/joho/godotenv"
)

// app holds everything a command needs once the process is initialised.
type app struct {
	cfg  *config.Config
	sink interfaces.Sink
}

// initializeSystem loads .env and the config file, then sets up logging and tracing.
func initializeSystem(configPath string) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitWithConfig(logger.LogConfig{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		DetailedLogging: cfg.Logging.Detailed,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(trace.Options{Enabled: cfg.Logging.Tracing, Pretty: true}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	s, err := sink.Open(ctx, cfg.Store)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open store", err, "driver", cfg.Store.Driver)
		return nil, err
	}
	logger.Info(ctx, "Store ready", "driver", cfg.Store.Driver)

	compressOldLogs(ctx, cfg.Reports)
	return &app{cfg: cfg, sink: sinkobs.Wrap(s, cfg.Store.Driver)}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.sink.Close(); err != nil {
		logger.Warn(ctx, "Closing store failed", "error", err)
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Tracer shutdown failed", "error", err)
	}
}

// batchOrchestrator drives yearly runs with the batch timeout.
func (a *app) batchOrchestrator() *batch.Orchestrator {
	up := upstreamobs.Wrap(upstream.New(a.cfg.Upstream))
	return batch.New(batch.ConfigFrom(a.cfg.Batch), up, a.sink)
}

// dateOrchestrator serves single-date requests with the interactive timeout and handshake pause.
func (a *app) dateOrchestrator() *batch.Orchestrator {
	up := upstreamobs.Wrap(upstream.NewInteractive(a.cfg.Upstream))
	return batch.New(batch.ConfigFrom(a.cfg.Batch), up, a.sink)
}

// reporters builds the progress sinks of one run.
func (a *app) reporters(plan batch.Plan) interfaces.ProgressReporter {
	m := report.Multi{report.NewLogReporter(plan.RunID, len(plan.Dates))}
	if a.cfg.Reports.Enabled {
		m = append(m,
			runlog.NewWriter(a.cfg.Reports.Dir, plan.RunID),
			report.NewSummaryWriter(a.cfg.Reports.Dir),
		)
	}
	return m
}

// compressOldLogs gzips run logs past the configured retention.
func compressOldLogs(ctx context.Context, cfg config.Reports) {
	if !cfg.Enabled || cfg.RetentionDays <= 0 {
		return
	}
	n, err := runlog.CompressOlder(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		logger.Warn(ctx, "Failed to compress old run logs", "error", err)
		return
	}
	if n > 0 {
		logger.Info(ctx, "Compressed old run logs", "count", n)
	}
}
