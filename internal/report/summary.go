package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/runlog"
	"bhavcopy-ingest/internal/types"
)

var summaryHeader = []string{
	"date", "status", "records_created", "records_updated", "records_with_errors",
	"total_rows", "coerced_fields", "status_code", "detail",
}

// SummaryPath is where the CSV summary of runID lives under dir.
func SummaryPath(dir, runID string) string {
	return filepath.Join(dir, "summary", runID+".csv")
}

// SummaryWriter writes the CSV summary once a run stops.
type SummaryWriter struct {
	dir string
}

var _ interfaces.ProgressReporter = (*SummaryWriter)(nil)

func NewSummaryWriter(dir string) *SummaryWriter {
	return &SummaryWriter{dir: dir}
}

func (w *SummaryWriter) Record(context.Context, types.FetchOutcome) {}

func (w *SummaryWriter) Summarize(ctx context.Context, s types.RunSummary) {
	path := SummaryPath(w.dir, s.RunID)
	if err := WriteCSV(path, s.Outcomes); err != nil {
		logger.ErrorWithErr(ctx, "Failed to write run summary", err, "run_id", s.RunID, "path", path)
		return
	}
	logger.Info(ctx, "Run summary written", "run_id", s.RunID, "path", path)
}

// FromRunLog rebuilds the CSV summary of runID from its run log and returns its path.
func FromRunLog(dir, runID string) (string, error) {
	logPath, err := runlog.Find(dir, runID)
	if err != nil {
		return "", err
	}
	outcomes, err := runlog.Read(logPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", logPath, err)
	}
	out := SummaryPath(dir, runID)
	if err := WriteCSV(out, outcomes); err != nil {
		return "", err
	}
	return out, nil
}

// WriteCSV writes one row per outcome followed by a TOTAL row.
func WriteCSV(path string, outcomes []types.FetchOutcome) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}

	var total types.Counts
	var rows, coerced int
	for _, o := range outcomes {
		detail := o.Error
		if detail == "" {
			detail = o.Reason
		}
		code := ""
		if o.StatusCode != 0 {
			code = strconv.Itoa(o.StatusCode)
		}
		rec := []string{
			o.Date.Format(types.DateLayout),
			string(o.Status),
			strconv.Itoa(o.Created),
			strconv.Itoa(o.Updated),
			strconv.Itoa(o.Errored),
			strconv.Itoa(o.TotalRows),
			strconv.Itoa(o.Coerced),
			code,
			detail,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
		total.Created += o.Created
		total.Updated += o.Updated
		total.Errored += o.Errored
		rows += o.TotalRows
		coerced += o.Coerced
	}

	if err := w.Write([]string{
		"TOTAL", fmt.Sprintf("%d dates", len(outcomes)),
		strconv.Itoa(total.Created), strconv.Itoa(total.Updated), strconv.Itoa(total.Errored),
		strconv.Itoa(rows), strconv.Itoa(coerced), "", "",
	}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
