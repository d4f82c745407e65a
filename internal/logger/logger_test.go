package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"bhavcopy-ingest/internal/types"

	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, detailed bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "INFO", Format: "json", DetailedLogging: detailed, Output: &buf}))
	t.Cleanup(func() { _ = InitWithConfig(LogConfig{Level: "INFO", Format: "text"}) })
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestDebugSuppressedUnlessDetailed(t *testing.T) {
	buf := captureJSON(t, false)
	Debug(context.Background(), "hidden")
	Info(context.Background(), "shown", "k", 1)

	got := lines(t, buf)
	require.Len(t, got, 1)
	require.Equal(t, "shown", got[0]["msg"])
}

func TestDetailedAddsSource(t *testing.T) {
	buf := captureJSON(t, true)
	Debug(context.Background(), "visible")

	got := lines(t, buf)
	require.Len(t, got, 1)
	src, ok := got[0]["source"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, src["file"], "logger_test.go")
}

func TestOutcomeFields(t *testing.T) {
	buf := captureJSON(t, false)
	Outcome(context.Background(), types.FetchOutcome{
		Date:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:    types.StatusFailed,
		Error:     "HTTP 503",
		TotalRows: 0,
	})

	got := lines(t, buf)
	require.Len(t, got, 1)
	require.Equal(t, "WARN", got[0]["level"])
	require.Equal(t, "02-01-2024", got[0]["date"])
	require.Equal(t, "HTTP 503", got[0]["error"])
	require.Equal(t, "OUTCOME", got[0]["type"])
}

func TestOperationTimerEndWithError(t *testing.T) {
	buf := captureJSON(t, false)
	op := StartOperation(context.Background(), "sink.apply", "rows", 3)
	op.EndWithError(errors.New("boom"))

	got := lines(t, buf)
	require.Len(t, got, 1)
	require.Equal(t, "sink.apply", got[0]["operation"])
	require.Equal(t, "boom", got[0]["error"])
}
