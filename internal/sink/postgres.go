package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres upserts through a pgx pool. Each Apply is one transaction; each row runs
// inside its own savepoint so a failed row does not poison the transaction.
type Postgres struct {
	pool      *pgxpool.Pool
	upsertSQL string
}

var _ interfaces.Sink = (*Postgres)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS bhavcopy (
	id            BIGSERIAL PRIMARY KEY,
	symbol        VARCHAR(20) NOT NULL,
	series        VARCHAR(5)  NOT NULL,
	trade_date    DATE        NOT NULL,
	prev_close    DOUBLE PRECISION NOT NULL DEFAULT 0,
	open_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	high_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	low_price     DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	close_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_price     DOUBLE PRECISION NOT NULL DEFAULT 0,
	ttl_trd_qnty  BIGINT NOT NULL DEFAULT 0,
	turnover_lacs DOUBLE PRECISION NOT NULL DEFAULT 0,
	no_of_trades  BIGINT NOT NULL DEFAULT 0,
	deliv_qty     BIGINT NOT NULL DEFAULT 0,
	deliv_per     DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (symbol, series, trade_date)
);
CREATE INDEX IF NOT EXISTS idx_bhavcopy_date ON bhavcopy (trade_date);
`

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info(ctx, "Postgres sink opened", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &Postgres{pool: pool, upsertSQL: buildPostgresUpsert()}, nil
}

// buildPostgresUpsert returns an upsert whose single result column is true for an insert.
// xmax is 0 only on a freshly inserted tuple.
func buildPostgresUpsert() string {
	cols := append([]string{"symbol", "series", "trade_date"}, measureColumns...)
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(measureColumns)+1)
	for _, c := range measureColumns {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = now()")

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
ON CONFLICT (symbol, series, trade_date) DO UPDATE SET %s
RETURNING (xmax = 0) AS inserted`,
		tableName, strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(sets, ", "))
}

func (p *Postgres) Apply(ctx context.Context, records []types.DailyRecord) (types.Counts, error) {
	var counts types.Counts
	if len(records) == 0 {
		return counts, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if err := r.Validate(); err != nil {
			counts.Errored++
			logger.Debug(ctx, "Row rejected", "error", err)
			continue
		}
		inserted, err := p.upsertRow(ctx, tx, r)
		if err != nil {
			counts.Errored++
			logger.Debug(ctx, "Row upsert failed", "symbol", r.Symbol, "series", r.Series, "error", err)
			continue
		}
		if inserted {
			counts.Created++
		} else {
			counts.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Counts{}, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

func (p *Postgres) upsertRow(ctx context.Context, tx pgx.Tx, r types.DailyRecord) (bool, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}

	args := append([]any{r.Symbol, r.Series, r.TradeDate}, measures(r)...)
	var inserted bool
	if err := sp.QueryRow(ctx, p.upsertSQL, args...).Scan(&inserted); err != nil {
		_ = sp.Rollback(ctx)
		return false, err
	}
	if err := sp.Commit(ctx); err != nil {
		return false, fmt.Errorf("release savepoint: %w", err)
	}
	return inserted, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
