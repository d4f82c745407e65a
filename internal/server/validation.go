package server

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Oudwins/zog"
)

var dateParam = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

type yearlyQuery struct {
	Year      int
	StartFrom string
}

type fetchQuery struct {
	Date string
}

var yearlySchema = zog.Struct(zog.Shape{
	"Year": zog.Int().Required(zog.Message("year is required")).
		GTE(1994, zog.Message("year must be 1994 or later")).
		LTE(2100, zog.Message("year is out of range")),
	"StartFrom": zog.String().Optional().
		Match(dateParam, zog.Message("start_from must be dd-mm-yyyy")),
})

var fetchSchema = zog.Struct(zog.Shape{
	"Date": zog.String().Required(zog.Message("dt is required")).
		Match(dateParam, zog.Message("dt must be dd-mm-yyyy")),
})

// firstIssueKey repeats the first failing field's issues; skipped so messages appear once.
const firstIssueKey = "$first"

// issues joins the messages of a failed validation, ordered by field name.
func issues(m zog.ZogIssueMap) string {
	fields := make([]string, 0, len(m))
	for field := range m {
		if field != firstIssueKey {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	var msgs []string
	for _, field := range fields {
		for _, issue := range m[field] {
			msgs = append(msgs, issue.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// parseYear returns 0 for a missing year so the schema reports it as required.
func parseYear(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return y, true
}
