package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the day-month-year literal used by triggers, run logs and reports.
const DateLayout = "02-01-2006"

const (
	MaxSymbolLen = 20
	MaxSeriesLen = 5
)

// DailyRecord is one bhavcopy row: a symbol+series on one trading date.
type DailyRecord struct {
	Symbol         string    `json:"symbol"`
	Series         string    `json:"series"`
	TradeDate      time.Time `json:"trade_date"`
	PrevClose      float64   `json:"prev_close"`
	OpenPrice      float64   `json:"open_price"`
	HighPrice      float64   `json:"high_price"`
	LowPrice       float64   `json:"low_price"`
	LastPrice      float64   `json:"last_price"`
	ClosePrice     float64   `json:"close_price"`
	AvgPrice       float64   `json:"avg_price"`
	TotalTradedQty int64     `json:"ttl_trd_qnty"`
	TurnoverLacs   float64   `json:"turnover_lacs"`
	NoOfTrades     int64     `json:"no_of_trades"`
	DeliveredQty   int64     `json:"deliv_qty"`
	DeliveredPct   float64   `json:"deliv_per"`
}

// Key returns the natural key (symbol, series, trade date) as a single string.
func (r DailyRecord) Key() string {
	return r.Symbol + "|" + r.Series + "|" + r.TradeDate.Format("2006-01-02")
}

// Validate enforces the column constraints the store declares.
func (r DailyRecord) Validate() error {
	switch {
	case r.Symbol == "":
		return fmt.Errorf("empty symbol")
	case r.Series == "":
		return fmt.Errorf("symbol %s: empty series", r.Symbol)
	case len(r.Symbol) > MaxSymbolLen:
		return fmt.Errorf("symbol %q exceeds %d chars", r.Symbol, MaxSymbolLen)
	case len(r.Series) > MaxSeriesLen:
		return fmt.Errorf("symbol %s: series %q exceeds %d chars", r.Symbol, r.Series, MaxSeriesLen)
	case r.TradeDate.IsZero():
		return fmt.Errorf("symbol %s: missing trade date", r.Symbol)
	}
	return nil
}

// Batch is the normalized content of one date's CSV.
type Batch struct {
	Records []DailyRecord
	// Coerced counts numeric cells that were blank, a dash or not a number and were stored as 0.
	Coerced int
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Counts is what a sink reports for one date.
type Counts struct {
	Created int `json:"records_created"`
	Updated int `json:"records_updated"`
	Errored int `json:"records_with_errors"`
}

func (c Counts) Total() int { return c.Created + c.Updated + c.Errored }

// FetchOutcome is the result of attempting one date.
type FetchOutcome struct {
	Date       time.Time `json:"-"`
	Status     Status    `json:"status"`
	Counts               // embedded so the JSON stays flat
	TotalRows  int       `json:"total_rows"`
	Coerced    int       `json:"coerced_fields"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

func (o FetchOutcome) MarshalJSON() ([]byte, error) {
	type plain FetchOutcome
	return json.Marshal(struct {
		Date string `json:"date"`
		plain
	}{
		Date:  o.Date.Format(DateLayout),
		plain: plain(o),
	})
}

func (o *FetchOutcome) UnmarshalJSON(b []byte) error {
	type plain FetchOutcome
	aux := struct {
		Date string `json:"date"`
		*plain
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Date == "" {
		o.Date = time.Time{}
		return nil
	}
	d, err := time.ParseInLocation(DateLayout, aux.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("outcome date: %w", err)
	}
	o.Date = d
	return nil
}

// RunState is a batch orchestrator state.
type RunState string

const (
	StateIdle                RunState = "idle"
	StateSessionEstablishing RunState = "session_establishing"
	StateRunning             RunState = "running"
	StateSessionRefreshing   RunState = "session_refreshing"
	StateCompleted           RunState = "completed"
	StateAborted             RunState = "aborted"
	StateCancelled           RunState = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateCancelled
}

// RunSummary is produced once a batch run stops.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	Year        int            `json:"year,omitempty"`
	StartFrom   string         `json:"start_from,omitempty"`
	State       RunState       `json:"state"`
	TargetDates int            `json:"target_dates"`
	Attempted   int            `json:"attempted"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	Coerced     int            `json:"coerced_fields"`
	AbortReason string         `json:"abort_reason,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Outcomes    []FetchOutcome `json:"outcomes"`
}

// Add folds an outcome into the summary counters and appends it.
func (s *RunSummary) Add(o FetchOutcome) {
	s.Attempted++
	s.Coerced += o.Coerced
	switch o.Status {
	case StatusSuccess:
		s.Successful++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	s.Outcomes = append(s.Outcomes, o)
}
