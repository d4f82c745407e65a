package batch

import (
	"context"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"

	"github.com/cenkalti/backoff/v4"
)

// refresh replaces the current session. A failed handshake is retried RefreshRetries
// times, RefreshBackoff apart. used is how many requests the old session served.
func (o *Orchestrator) refresh(ctx context.Context, used int) (interfaces.Session, error) {
	logger.Info(ctx, "Refreshing upstream session", "requests_served", used)

	var sess interfaces.Session
	attempt := 0
	op := func() error {
		attempt++
		s, err := o.upstream.Establish(ctx)
		if err != nil {
			return err
		}
		sess = s
		return nil
	}

	retries := o.cfg.RefreshRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.cfg.RefreshBackoff), uint64(retries)),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		logger.Warn(ctx, "Session refresh failed, backing off",
			"attempt", attempt,
			"wait", wait.String(),
			"error", err,
		)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Upstream session refreshed", "attempts", attempt)
	return sess, nil
}
