package bhavcopy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = " SYMBOL , SERIES, DATE1, PREV_CLOSE, OPEN_PRICE, HIGH_PRICE, LOW_PRICE, LAST_PRICE, CLOSE_PRICE, AVG_PRICE, TTL_TRD_QNTY, TURNOVER_LACS, NO_OF_TRADES, DELIV_QTY, DELIV_PER\n"

func TestNormalize_WellFormedRow(t *testing.T) {
	payload := header + "RELIANCE, EQ, 23-Mar-2025, 1275.10, 1280.00, 1290.55, 1270.00, 1285.00, 1284.65, 1281.12, 9876543, 126543.21, 210987, 4938271, 50.00\n"

	batch, err := NewNormalizer().Normalize([]byte(payload))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	require.Zero(t, batch.Coerced)

	r := batch.Records[0]
	assert.Equal(t, "RELIANCE", r.Symbol)
	assert.Equal(t, "EQ", r.Series)
	assert.Equal(t, time.Date(2025, time.March, 23, 0, 0, 0, 0, time.UTC), r.TradeDate)
	assert.Equal(t, 1275.10, r.PrevClose)
	assert.Equal(t, 1280.00, r.OpenPrice)
	assert.Equal(t, 1290.55, r.HighPrice)
	assert.Equal(t, 1270.00, r.LowPrice)
	assert.Equal(t, 1285.00, r.LastPrice)
	assert.Equal(t, 1284.65, r.ClosePrice)
	assert.Equal(t, 1281.12, r.AvgPrice)
	assert.Equal(t, int64(9876543), r.TotalTradedQty)
	assert.Equal(t, 126543.21, r.TurnoverLacs)
	assert.Equal(t, int64(210987), r.NoOfTrades)
	assert.Equal(t, int64(4938271), r.DeliveredQty)
	assert.Equal(t, 50.00, r.DeliveredPct)
}

func TestNormalize_PlaceholdersBecomeZero(t *testing.T) {
	tests := []struct {
		name string
		cell string
	}{
		{"dash", "-"},
		{"dash with spaces", " - "},
		{"leading space dash", " -"},
		{"trailing space dash", "- "},
		{"empty", ""},
		{"text", "n/a"},
		{"nan", "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := header + "ABC,EQ,02-Jan-2024,10,11,12,9,10.5,10.6,10.4,100,1.5,7," + tt.cell + ",55\n"

			batch, err := NewNormalizer().Normalize([]byte(payload))
			require.NoError(t, err)
			require.Len(t, batch.Records, 1)
			require.Equal(t, int64(0), batch.Records[0].DeliveredQty)
			require.Equal(t, 1, batch.Coerced)
			// neighbours are untouched
			require.Equal(t, int64(7), batch.Records[0].NoOfTrades)
			require.Equal(t, 55.0, batch.Records[0].DeliveredPct)
		})
	}
}

func TestNormalize_IntegerColumnsAcceptDecimals(t *testing.T) {
	payload := header + "ABC,EQ,02-Jan-2024,1,1,1,1,1,1,1,1500.0,1,12.0,300.9,1\n"

	batch, err := NewNormalizer().Normalize([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, int64(1500), batch.Records[0].TotalTradedQty)
	require.Equal(t, int64(12), batch.Records[0].NoOfTrades)
	require.Equal(t, int64(300), batch.Records[0].DeliveredQty)
}

func TestNormalize_BadDateFailsWholeBatch(t *testing.T) {
	payload := header +
		"ABC,EQ,02-Jan-2024,1,1,1,1,1,1,1,1,1,1,1,1\n" +
		"XYZ,EQ,2024-01-02,1,1,1,1,1,1,1,1,1,1,1,1\n"

	_, err := NewNormalizer().Normalize([]byte(payload))
	require.ErrorIs(t, err, ErrMalformed)
	require.Contains(t, err.Error(), "DATE1")
}

func TestNormalize_EmptyPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"empty body":  "",
		"header only": header,
		"blank lines": header + "\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			batch, err := NewNormalizer().Normalize([]byte(payload))
			require.NoError(t, err)
			require.Empty(t, batch.Records)
		})
	}
}

func TestNormalize_MissingKeyColumn(t *testing.T) {
	_, err := NewNormalizer().Normalize([]byte("SYMBOL,SERIES,PREV_CLOSE\nABC,EQ,1\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNormalize_AbsentNumericColumnIsZeroNotCoerced(t *testing.T) {
	batch, err := NewNormalizer().Normalize([]byte("\xef\xbb\xbfSYMBOL,SERIES,DATE1,CLOSE_PRICE\nABC,EQ,05-Feb-2024,42.5\n"))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	require.Equal(t, 42.5, batch.Records[0].ClosePrice)
	require.Zero(t, batch.Records[0].OpenPrice)
	require.Zero(t, batch.Coerced)
}
