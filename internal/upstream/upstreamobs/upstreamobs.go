package upstreamobs

import (
	"context"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/trace"
	"bhavcopy-ingest/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

type observableUpstream struct {
	upstream interfaces.Upstream
}

var _ interfaces.Upstream = (*observableUpstream)(nil)

func Wrap(upstream interfaces.Upstream) interfaces.Upstream {
	return &observableUpstream{
		upstream: upstream,
	}
}

func (ou *observableUpstream) Establish(ctx context.Context) (interfaces.Session, error) {
	ctx, span := trace.StartSpan(ctx, "upstream.Establish")
	defer span.End()

	start := time.Now()
	sess, err := ou.upstream.Establish(ctx)
	if err != nil {
		trace.Fail(span, err)
		logger.Warn(ctx, "Upstream handshake failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.Info(ctx, "Upstream session established",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sess, nil
}

func (ou *observableUpstream) FetchDate(ctx context.Context, sess interfaces.Session, date time.Time) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "upstream.FetchDate")
	defer span.End()

	d := date.Format(types.DateLayout)
	trace.Attrs(span,
		attribute.String("date", d),
		attribute.Int("session_requests", sess.Requests()),
	)
	if aged, ok := sess.(interface{ EstablishedAt() time.Time }); ok {
		trace.Attrs(span, attribute.Int64("session_age_ms", time.Since(aged.EstablishedAt()).Milliseconds()))
	}

	start := time.Now()
	body, err := ou.upstream.FetchDate(ctx, sess, date)
	if err != nil {
		trace.Fail(span, err)
		logger.Debug(ctx, "CSV fetch failed",
			"date", d,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	trace.Attrs(span, attribute.Int("bytes", len(body)))
	logger.Debug(ctx, "CSV fetched",
		"date", d,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}
