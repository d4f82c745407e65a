package sink

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bhavcopy-ingest/internal/config"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

var tradeDate = time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)

func record(symbol string, price float64) types.DailyRecord {
	return types.DailyRecord{
		Symbol:         symbol,
		Series:         "EQ",
		TradeDate:      tradeDate,
		PrevClose:      price - 1,
		OpenPrice:      price - 0.5,
		HighPrice:      price + 2,
		LowPrice:       price - 2,
		LastPrice:      price,
		ClosePrice:     price,
		AvgPrice:       price,
		TotalTradedQty: 1000,
		TurnoverLacs:   12.5,
		NoOfTrades:     42,
		DeliveredQty:   500,
		DeliveredPct:   50,
	}
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bhavcopy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sinks returns every driver that runs without external services.
func sinks(t *testing.T) map[string]interfaces.Sink {
	return map[string]interfaces.Sink{
		"memory": NewMemory(),
		"sqlite": openSQLite(t),
	}
}

func TestApply_CreatedThenUpdated(t *testing.T) {
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			counts, err := s.Apply(ctx, []types.DailyRecord{record("ABC", 100)})
			require.NoError(t, err)
			require.Equal(t, types.Counts{Created: 1}, counts)

			counts, err = s.Apply(ctx, []types.DailyRecord{record("ABC", 120)})
			require.NoError(t, err)
			require.Equal(t, types.Counts{Updated: 1}, counts)
		})
	}
}

func TestSQLite_SecondWriteWins(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, []types.DailyRecord{record("ABC", 100)})
	require.NoError(t, err)
	_, err = s.Apply(ctx, []types.DailyRecord{record("ABC", 120)})
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, ok, err := s.Get(ctx, "ABC", "EQ", tradeDate)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 120.0, got.ClosePrice)
	require.Equal(t, int64(42), got.NoOfTrades)
}

func TestSQLite_DistinctSeriesAndDatesAreDistinctRows(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	be := record("ABC", 10)
	be.Series = "BE"
	next := record("ABC", 10)
	next.TradeDate = tradeDate.AddDate(0, 0, 1)

	counts, err := s.Apply(ctx, []types.DailyRecord{record("ABC", 10), be, next})
	require.NoError(t, err)
	require.Equal(t, types.Counts{Created: 3}, counts)
}

func TestApply_RowFailureDoesNotAbortBatch(t *testing.T) {
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			records := []types.DailyRecord{
				record("GOOD1", 10),
				record(strings.Repeat("X", types.MaxSymbolLen+1), 10),
				record("GOOD2", 10),
			}

			counts, err := s.Apply(context.Background(), records)
			require.NoError(t, err)
			require.Equal(t, types.Counts{Created: 2, Errored: 1}, counts)
			require.Equal(t, len(records), counts.Total())
		})
	}
}

func TestApply_Empty(t *testing.T) {
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			counts, err := s.Apply(context.Background(), nil)
			require.NoError(t, err)
			require.Zero(t, counts.Total())
		})
	}
}

func TestSQLite_CancelledContextAppliesNothing(t *testing.T) {
	s := openSQLite(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Apply(ctx, []types.DailyRecord{record("ABC", 1)})
	require.Error(t, err)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSQLite_ConcurrentUpsertsSameKey(t *testing.T) {
	s := openSQLite(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			_, err := s.Apply(context.Background(), []types.DailyRecord{record("ABC", price)})
			assert.NoError(t, err)
		}(float64(100 + i))
	}
	wg.Wait()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.Store{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)

	s, err = Open(context.Background(), config.Store{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.Store{Driver: "csv"})
	require.Error(t, err)
}

func TestBuildPostgresUpsert(t *testing.T) {
	q := buildPostgresUpsert()
	require.Contains(t, q, "ON CONFLICT (symbol, series, trade_date) DO UPDATE SET prev_close = EXCLUDED.prev_close")
	require.Contains(t, q, "$15)")
	require.Contains(t, q, "RETURNING (xmax = 0)")
}

func TestTallyBulkWrite(t *testing.T) {
	ctx := context.Background()

	res := &mongo.BulkWriteResult{UpsertedIDs: map[int64]interface{}{0: "a", 2: "c"}}
	counts, err := tallyBulkWrite(ctx, 4, res, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Counts{Created: 2, Updated: 2}, counts)

	bwe := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Index: 1, Message: "dup"}}}}
	counts, err = tallyBulkWrite(ctx, 3, &mongo.BulkWriteResult{UpsertedIDs: map[int64]interface{}{0: "a"}}, bwe)
	require.NoError(t, err)
	assert.Equal(t, types.Counts{Created: 1, Updated: 1, Errored: 1}, counts)
}

func TestTallyBulkWrite_MissingResult(t *testing.T) {
	ctx := context.Background()

	_, err := tallyBulkWrite(ctx, 2, nil, nil)
	require.ErrorIs(t, err, errNoBulkResult)
	require.NotContains(t, err.Error(), "%!w")

	bwe := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Index: 0, Message: "dup"}}}}
	_, err = tallyBulkWrite(ctx, 2, nil, bwe)
	var got mongo.BulkWriteException
	require.ErrorAs(t, err, &got)

	boom := errors.New("server selection timeout")
	_, err = tallyBulkWrite(ctx, 2, nil, boom)
	require.ErrorIs(t, err, boom)
}
