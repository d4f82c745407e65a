package sinkobs

import (
	"context"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"
)

type observableSink struct {
	sink   interfaces.Sink
	driver string
}

var _ interfaces.Sink = (*observableSink)(nil)

func Wrap(sink interfaces.Sink, driver string) interfaces.Sink {
	return &observableSink{
		sink:   sink,
		driver: driver,
	}
}

func (o *observableSink) Apply(ctx context.Context, records []types.DailyRecord) (types.Counts, error) {
	op := logger.StartOperation(ctx, "sink.Apply",
		"driver", o.driver,
		"rows", len(records),
	)
	ctx = op.GetContext()

	counts, err := o.sink.Apply(ctx, records)
	if err != nil {
		op.EndWithError(err)
		return counts, err
	}

	if counts.Errored > 0 {
		logger.Warn(ctx, "Some rows failed to persist",
			"driver", o.driver,
			"rows", len(records),
			"errored", counts.Errored,
		)
	}
	op.End(
		"created", counts.Created,
		"updated", counts.Updated,
		"errored", counts.Errored,
	)
	return counts, nil
}

func (o *observableSink) Close() error {
	err := o.sink.Close()
	if err != nil {
		logger.ErrorWithErr(context.Background(), "Closing sink failed", err, "driver", o.driver)
	}
	return err
}
