package bhavcopy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusinessDays_WeekdaysOnlyWithinYear(t *testing.T) {
	for _, year := range []int{2019, 2020, 2023, 2024, 2025} {
		days := BusinessDays(year, time.Time{})
		require.NotEmpty(t, days)

		seen := map[time.Time]bool{}
		for i, d := range days {
			require.Equal(t, year, d.Year())
			require.NotEqual(t, time.Saturday, d.Weekday())
			require.NotEqual(t, time.Sunday, d.Weekday())
			require.False(t, seen[d], "duplicate %s", d)
			seen[d] = true
			if i > 0 {
				require.True(t, d.After(days[i-1]))
			}
		}
	}
}

func TestBusinessDays_2024Count(t *testing.T) {
	days := BusinessDays(2024, time.Time{})
	require.Len(t, days, 262)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), days[0])
	require.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), days[len(days)-1])
}

func TestBusinessDays_StartFilter(t *testing.T) {
	all := BusinessDays(2024, time.Time{})
	from := time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC)

	filtered := BusinessDays(2024, from)

	var want []time.Time
	for _, d := range all {
		if !d.Before(from) {
			want = append(want, d)
		}
	}
	require.Equal(t, want, filtered)
	require.Equal(t, from, filtered[0])
}

func TestBusinessDays_StartOutsideYear(t *testing.T) {
	require.Len(t, BusinessDays(2024, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)), 262)
	require.Empty(t, BusinessDays(2024, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("05-03-2024")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2024-03-05")
	require.Error(t, err)
}
