package upstreamobs_test

import (
	"net/http"
	"testing"
	"time"

	"bhavcopy-ingest/internal/upstream"
	"bhavcopy-ingest/internal/upstream/upstreamobs"
	"bhavcopy-ingest/internal/upstream/upstreamtest"

	"github.com/stretchr/testify/require"
)

func TestWrap_PassesThrough(t *testing.T) {
	srv := upstreamtest.New()
	defer srv.Close()

	up := upstreamobs.Wrap(upstream.New(srv.Upstream()))

	sess, err := up.Establish(t.Context())
	require.NoError(t, err)

	body, err := up.FetchDate(t.Context(), sess, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Contains(t, string(body), "02-May-2024")
}

func TestWrap_KeepsErrorTypes(t *testing.T) {
	srv := upstreamtest.New()
	srv.HandshakeStatus = func(int) int { return http.StatusForbidden }
	defer srv.Close()

	_, err := upstreamobs.Wrap(upstream.New(srv.Upstream())).Establish(t.Context())

	var he *upstream.HandshakeError
	require.ErrorAs(t, err, &he)
}
