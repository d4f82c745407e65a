package interfaces

import (
	"context"

	"bhavcopy-ingest/internal/types"
)

//go:generate mockgen -source=sink.go -destination=mocks/mock_sink.go -package=mocks

// Sink upserts one date's records by (symbol, series, trade date).
// Row failures are reported in Counts.Errored; an error return means nothing was applied.
type Sink interface {
	Apply(ctx context.Context, records []types.DailyRecord) (types.Counts, error)
	Close() error
}
