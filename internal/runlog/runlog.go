// Package runlog keeps one JSON-lines file of outcomes per run.
package runlog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"
)

const (
	subdir = "runs"
	ext    = ".jsonl"
)

// Path is where the log of runID lives under dir.
func Path(dir, runID string) string {
	return filepath.Join(dir, subdir, runID+ext)
}

// Writer appends every outcome of one run to its log file.
type Writer struct {
	path string
	mu   sync.Mutex
}

var _ interfaces.ProgressReporter = (*Writer)(nil)

func NewWriter(dir, runID string) *Writer {
	return &Writer{path: Path(dir, runID)}
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) Append(o types.FetchOutcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (w *Writer) Record(ctx context.Context, o types.FetchOutcome) {
	if err := w.Append(o); err != nil {
		logger.ErrorWithErr(ctx, "Failed to append run log", err, "path", w.path)
	}
}

func (w *Writer) Summarize(ctx context.Context, s types.RunSummary) {
	logger.Info(ctx, "Run log complete", "run_id", s.RunID, "path", w.path, "outcomes", s.Attempted)
}

// Read loads the outcomes of a run log, plain or gzipped, in the order they were written.
func Read(path string) ([]types.FetchOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gr.Close()
		r = gr
	}

	var out []types.FetchOutcome
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var o types.FetchOutcome
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, o)
	}
	return out, sc.Err()
}

// Find returns the log of runID, preferring the plain file over its gzipped copy.
func Find(dir, runID string) (string, error) {
	p := Path(dir, runID)
	for _, candidate := range []string{p, p + ".gz"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no run log for %s under %s: %w", runID, dir, fs.ErrNotExist)
}

// CompressOlder gzips run logs not modified for retentionDays. It returns how many it compressed.
func CompressOlder(dir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	root := filepath.Join(dir, subdir)
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	compressed := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && os.IsNotExist(err) {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ext {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			logger.Warn(context.Background(), "Failed to compress run log", "path", p, "error", err)
			return nil
		}
		compressed++
		return os.Remove(p)
	})
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
