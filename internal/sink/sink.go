// Package sink persists bhavcopy records keyed by (symbol, series, trade date).
package sink

import (
	"context"
	"fmt"

	"bhavcopy-ingest/internal/config"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"
)

const tableName = "bhavcopy"

// dateKey is how trade dates are stored in SQL drivers.
const dateKey = "2006-01-02"

// Open returns the sink selected by cfg.Driver, with its schema in place.
func Open(ctx context.Context, cfg config.Store) (interfaces.Sink, error) {
	var (
		s   interfaces.Sink
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err = asSink(OpenSQLite(ctx, cfg.DSN))
	case config.DriverPostgres:
		s, err = asSink(OpenPostgres(ctx, cfg.DSN))
	case config.DriverMongo:
		s, err = asSink(OpenMongo(ctx, cfg.DSN, cfg.Database, cfg.Collection))
	case config.DriverMemory:
		s = NewMemory()
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// asSink keeps a failed open from turning into a non-nil interface holding a nil pointer.
func asSink[S interfaces.Sink](s S, err error) (interfaces.Sink, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// measures are the non-key columns in table order.
func measures(r types.DailyRecord) []any {
	return []any{
		r.PrevClose, r.OpenPrice, r.HighPrice, r.LowPrice, r.LastPrice, r.ClosePrice, r.AvgPrice,
		r.TotalTradedQty, r.TurnoverLacs, r.NoOfTrades, r.DeliveredQty, r.DeliveredPct,
	}
}

var measureColumns = []string{
	"prev_close", "open_price", "high_price", "low_price", "last_price", "close_price", "avg_price",
	"ttl_trd_qnty", "turnover_lacs", "no_of_trades", "deliv_qty", "deliv_per",
}
