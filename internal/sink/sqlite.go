package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"

	_ "modernc.org/sqlite"
)

// SQLite upserts into a single-file database. One transaction per Apply.
type SQLite struct {
	db        *sql.DB
	updateSQL string
	insertSQL string
}

var _ interfaces.Sink = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sets := make([]string, 0, len(measureColumns)+1)
	for _, c := range measureColumns {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	s.updateSQL = fmt.Sprintf(`UPDATE %s SET %s WHERE symbol = ? AND series = ? AND trade_date = ?`,
		tableName, strings.Join(sets, ", "))

	cols := append([]string{"symbol", "series", "trade_date"}, measureColumns...)
	cols = append(cols, "updated_at")
	s.insertSQL = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		tableName, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","))

	logger.Info(ctx, "SQLite sink opened", "path", path)
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bhavcopy (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol        TEXT NOT NULL CHECK (length(symbol) BETWEEN 1 AND 20),
			series        TEXT NOT NULL CHECK (length(series) BETWEEN 1 AND 5),
			trade_date    TEXT NOT NULL,
			prev_close    REAL NOT NULL DEFAULT 0,
			open_price    REAL NOT NULL DEFAULT 0,
			high_price    REAL NOT NULL DEFAULT 0,
			low_price     REAL NOT NULL DEFAULT 0,
			last_price    REAL NOT NULL DEFAULT 0,
			close_price   REAL NOT NULL DEFAULT 0,
			avg_price     REAL NOT NULL DEFAULT 0,
			ttl_trd_qnty  INTEGER NOT NULL DEFAULT 0,
			turnover_lacs REAL NOT NULL DEFAULT 0,
			no_of_trades  INTEGER NOT NULL DEFAULT 0,
			deliv_qty     INTEGER NOT NULL DEFAULT 0,
			deliv_per     REAL NOT NULL DEFAULT 0,
			updated_at    TEXT NOT NULL,
			UNIQUE (symbol, series, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bhavcopy_date ON bhavcopy(trade_date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Apply writes all records in one transaction. UPDATE runs first; a record that matched
// no row is inserted. A failing row is counted and the rest continue.
func (s *SQLite) Apply(ctx context.Context, records []types.DailyRecord) (types.Counts, error) {
	var counts types.Counts
	if len(records) == 0 {
		return counts, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upd, err := tx.PrepareContext(ctx, s.updateSQL)
	if err != nil {
		return counts, fmt.Errorf("prepare update: %w", err)
	}
	defer upd.Close()
	ins, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return counts, fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if err := r.Validate(); err != nil {
			counts.Errored++
			logger.Debug(ctx, "Row rejected", "error", err)
			continue
		}
		key := []any{r.Symbol, r.Series, r.TradeDate.Format(dateKey)}

		res, err := upd.ExecContext(ctx, append(append(measures(r), now), key...)...)
		if err != nil {
			counts.Errored++
			logger.Debug(ctx, "Row update failed", "symbol", r.Symbol, "series", r.Series, "error", err)
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			counts.Updated++
			continue
		}

		if _, err := ins.ExecContext(ctx, append(append(key, measures(r)...), now)...); err != nil {
			counts.Errored++
			logger.Debug(ctx, "Row insert failed", "symbol", r.Symbol, "series", r.Series, "error", err)
			continue
		}
		counts.Created++
	}

	if err := tx.Commit(); err != nil {
		return types.Counts{}, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

// Get reads one record back by natural key.
func (s *SQLite) Get(ctx context.Context, symbol, series string, date time.Time) (types.DailyRecord, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE symbol = ? AND series = ? AND trade_date = ?`,
		strings.Join(measureColumns, ", "), tableName)

	r := types.DailyRecord{Symbol: symbol, Series: series, TradeDate: date}
	err := s.db.QueryRowContext(ctx, q, symbol, series, date.Format(dateKey)).Scan(
		&r.PrevClose, &r.OpenPrice, &r.HighPrice, &r.LowPrice, &r.LastPrice, &r.ClosePrice, &r.AvgPrice,
		&r.TotalTradedQty, &r.TurnoverLacs, &r.NoOfTrades, &r.DeliveredQty, &r.DeliveredPct,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DailyRecord{}, false, nil
	}
	if err != nil {
		return types.DailyRecord{}, false, err
	}
	return r, true, nil
}

// Count returns the number of stored rows.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
