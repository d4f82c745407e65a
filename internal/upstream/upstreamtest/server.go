// Package upstreamtest runs an in-process stand-in for the bhavcopy archive.
package upstreamtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"bhavcopy-ingest/internal/config"
)

const (
	cookieName = "nsit"
	csvPrefix  = "/archives/sec_bhavdata_full_"
)

// Server answers the handshake on "/" with a cookie and serves CSVs only to requests carrying it.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	handshakes int
	fetches    int
	// HandshakeStatus returns the status for the n-th handshake (1-based). Nil means 200.
	HandshakeStatus func(n int) int
	// CSV returns the status and body for a date. Nil serves ThreeRowCSV.
	CSV func(date time.Time) (int, string)
}

func New() *Server {
	s := &Server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handshake)
	mux.HandleFunc("/archives/", s.csv)
	s.Server = httptest.NewServer(mux)
	return s
}

// Upstream returns an upstream config pointing at the server.
func (s *Server) Upstream() config.Upstream {
	return config.Upstream{
		EntryURL:              s.URL + "/",
		CSVURLTemplate:        s.URL + csvPrefix + "{dd}{mm}{yyyy}.csv",
		BatchTimeoutSec:       5,
		InteractiveTimeoutSec: 5,
		Headers:               config.BrowserHeaders(),
	}
}

func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

func (s *Server) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *Server) handshake(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	s.handshakes++
	n := s.handshakes
	s.mu.Unlock()

	status := http.StatusOK
	if s.HandshakeStatus != nil {
		status = s.HandshakeStatus(n)
	}
	if status == http.StatusOK {
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: fmt.Sprint(n), Path: "/"})
	}
	w.WriteHeader(status)
}

func (s *Server) csv(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()

	if _, err := r.Cookie(cookieName); err != nil {
		http.Error(w, "session required", http.StatusForbidden)
		return
	}
	name, ok := strings.CutPrefix(r.URL.Path, csvPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	date, err := time.Parse("02012006", strings.TrimSuffix(name, ".csv"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	status, body := http.StatusOK, ThreeRowCSV(date)
	if s.CSV != nil {
		status, body = s.CSV(date)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Header is the bhavcopy CSV header with the spacing the archive uses.
const Header = "SYMBOL, SERIES, DATE1, PREV_CLOSE, OPEN_PRICE, HIGH_PRICE, LOW_PRICE, LAST_PRICE, CLOSE_PRICE, AVG_PRICE, TTL_TRD_QNTY, TURNOVER_LACS, NO_OF_TRADES, DELIV_QTY, DELIV_PER\n"

// ThreeRowCSV is a fixed three-symbol bhavcopy for date.
func ThreeRowCSV(date time.Time) string {
	d := date.Format("02-Jan-2006")
	return Header +
		"RELIANCE, EQ, " + d + ", 2900.10, 2905.00, 2950.00, 2890.00, 2940.00, 2941.50, 2925.33, 5123456, 149876.12, 120345, 2561728, 50.00\n" +
		"TCS, EQ, " + d + ", 3900.00, 3910.00, 3950.25, 3880.00, 3940.00, 3942.10, 3921.75, 1234567, 48412.90, 80211, 987654, 80.00\n" +
		"NIFTYBEES, EQ, " + d + ", 250.10, 251.00, 253.00, 249.50, 252.00, 252.10, 251.40, 998877, 2511.20, 15000, -, -\n"
}
