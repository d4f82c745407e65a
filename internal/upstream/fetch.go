package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"
)

// CSVURL fills {dd}, {mm} and {yyyy} in tmpl with the zero-padded parts of date.
func CSVURL(tmpl string, date time.Time) string {
	return strings.NewReplacer(
		"{dd}", date.Format("02"),
		"{mm}", date.Format("01"),
		"{yyyy}", date.Format("2006"),
	).Replace(tmpl)
}

// FetchDate downloads the CSV for date with the session's cookies.
// A non-200 answer is a *StatusError; the date is never retried here.
func (c *Client) FetchDate(ctx context.Context, sess interfaces.Session, date time.Time) ([]byte, error) {
	s, ok := sess.(*Session)
	if !ok || s == nil || s.client == nil {
		return nil, ErrForeignSession
	}

	target := CSVURL(c.csvTemplate, date)
	resp, err := s.client.GET(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", date.Format(types.DateLayout), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
	}
	return resp.Body, nil
}
