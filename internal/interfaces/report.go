package interfaces

import (
	"context"

	"bhavcopy-ingest/internal/types"
)

type Normalizer interface {
	Normalize(payload []byte) (types.Batch, error)
}

type ProgressReporter interface {
	Record(ctx context.Context, outcome types.FetchOutcome)
	Summarize(ctx context.Context, summary types.RunSummary)
}

// StateReporter is optionally implemented by a ProgressReporter that wants state transitions.
type StateReporter interface {
	State(ctx context.Context, state types.RunState)
}
