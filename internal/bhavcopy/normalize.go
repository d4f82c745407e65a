// Package bhavcopy turns the archive's daily CSV into typed records.
package bhavcopy

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"
)

// DATE1 layout, e.g. "23-Mar-2025".
const TradeDateLayout = "02-Jan-2006"

// ErrMalformed wraps every structural failure; the whole date is rejected.
var ErrMalformed = errors.New("malformed bhavcopy")

const (
	colSymbol = "SYMBOL"
	colSeries = "SERIES"
	colDate   = "DATE1"
)

type numericColumn struct {
	name string
	set  func(r *types.DailyRecord, v float64)
}

var numericColumns = []numericColumn{
	{"PREV_CLOSE", func(r *types.DailyRecord, v float64) { r.PrevClose = v }},
	{"OPEN_PRICE", func(r *types.DailyRecord, v float64) { r.OpenPrice = v }},
	{"HIGH_PRICE", func(r *types.DailyRecord, v float64) { r.HighPrice = v }},
	{"LOW_PRICE", func(r *types.DailyRecord, v float64) { r.LowPrice = v }},
	{"LAST_PRICE", func(r *types.DailyRecord, v float64) { r.LastPrice = v }},
	{"CLOSE_PRICE", func(r *types.DailyRecord, v float64) { r.ClosePrice = v }},
	{"AVG_PRICE", func(r *types.DailyRecord, v float64) { r.AvgPrice = v }},
	{"TTL_TRD_QNTY", func(r *types.DailyRecord, v float64) { r.TotalTradedQty = int64(v) }},
	{"TURNOVER_LACS", func(r *types.DailyRecord, v float64) { r.TurnoverLacs = v }},
	{"NO_OF_TRADES", func(r *types.DailyRecord, v float64) { r.NoOfTrades = int64(v) }},
	{"DELIV_QTY", func(r *types.DailyRecord, v float64) { r.DeliveredQty = int64(v) }},
	{"DELIV_PER", func(r *types.DailyRecord, v float64) { r.DeliveredPct = v }},
}

// Normalizer parses one date's CSV payload.
type Normalizer struct{}

var _ interfaces.Normalizer = Normalizer{}

func NewNormalizer() Normalizer { return Normalizer{} }

// Normalize returns the records in file order. A payload without data rows yields an
// empty batch and no error. Numeric cells that are blank, a dash or not a number become 0
// and are counted in Batch.Coerced.
func (Normalizer) Normalize(payload []byte) (types.Batch, error) {
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return types.Batch{}, nil
	}
	if err != nil {
		return types.Batch{}, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colSymbol, colSeries, colDate} {
		if _, ok := index[required]; !ok {
			return types.Batch{}, fmt.Errorf("%w: missing column %s", ErrMalformed, required)
		}
	}

	var batch types.Batch
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Batch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := reader.FieldPos(0)

		cell := func(col string) (string, bool) {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return "", ok
			}
			return strings.TrimSpace(row[i]), true
		}

		rawDate, _ := cell(colDate)
		tradeDate, err := time.Parse(TradeDateLayout, rawDate)
		if err != nil {
			return types.Batch{}, fmt.Errorf("%w: line %d: DATE1 %q: %v", ErrMalformed, line, rawDate, err)
		}

		rec := types.DailyRecord{TradeDate: tradeDate}
		rec.Symbol, _ = cell(colSymbol)
		rec.Series, _ = cell(colSeries)

		for _, col := range numericColumns {
			raw, present := cell(col.name)
			if !present {
				continue
			}
			v, ok := parseNumber(raw)
			if !ok {
				batch.Coerced++
			}
			col.set(&rec, v)
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

// parseNumber reports false for the dash placeholders, blanks and anything that is not a finite number.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
