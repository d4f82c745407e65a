package interfaces

import (
	"context"
	"time"
)

//go:generate mockgen -source=upstream.go -destination=mocks/mock_upstream.go -package=mocks

// Session is an established upstream session. Requests counts fetches made since establishment.
type Session interface {
	Requests() int
	Touch()
}

type SessionManager interface {
	Establish(ctx context.Context) (Session, error)
}

type Fetcher interface {
	FetchDate(ctx context.Context, sess Session, date time.Time) ([]byte, error)
}

// Upstream is the session-gated CSV source.
type Upstream interface {
	SessionManager
	Fetcher
}
