package bhavcopy

import (
	"fmt"
	"strings"
	"time"

	"bhavcopy-ingest/internal/types"
)

// BusinessDays lists Monday to Friday of year in ascending order, starting at from when
// from is set. Holidays are not known here; the archive answers those with an error or
// an empty file.
func BusinessDays(year int, from time.Time) []time.Time {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if !from.IsZero() {
		from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		if from.After(start) {
			start = from
		}
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		days = append(days, d)
	}
	return days
}

// ParseDate parses a dd-mm-yyyy trigger date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(types.DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected dd-mm-yyyy", s)
	}
	return d, nil
}
