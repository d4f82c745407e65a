package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Upstream describes the session-gated CSV source.
type Upstream struct {
	EntryURL              string            `yaml:"entry_url"`
	CSVURLTemplate        string            `yaml:"csv_url_template"`
	BatchTimeoutSec       int               `yaml:"batch_timeout_sec"`
	InteractiveTimeoutSec int               `yaml:"interactive_timeout_sec"`
	HandshakePauseMs      int               `yaml:"handshake_pause_ms"`
	Headers               map[string]string `yaml:"headers"`
}

func (u Upstream) BatchTimeout() time.Duration {
	return time.Duration(u.BatchTimeoutSec) * time.Second
}

func (u Upstream) InteractiveTimeout() time.Duration {
	return time.Duration(u.InteractiveTimeoutSec) * time.Second
}

func (u Upstream) HandshakePause() time.Duration {
	return time.Duration(u.HandshakePauseMs) * time.Millisecond
}

// Batch holds the pacing of a yearly run.
type Batch struct {
	RefreshInterval   int `yaml:"refresh_interval"`
	RequestDelayMs    int `yaml:"request_delay_ms"`
	RefreshBackoffSec int `yaml:"refresh_backoff_sec"`
	RefreshRetries    int `yaml:"refresh_retries"`
}

func (b Batch) RequestDelay() time.Duration {
	return time.Duration(b.RequestDelayMs) * time.Millisecond
}

func (b Batch) RefreshBackoff() time.Duration {
	return time.Duration(b.RefreshBackoffSec) * time.Second
}

type Store struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type Server struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	GinMode        string  `yaml:"gin_mode"`
}

type Jobs struct {
	RetentionMinutes int `yaml:"retention_minutes"`
}

func (j Jobs) Retention() time.Duration {
	return time.Duration(j.RetentionMinutes) * time.Minute
}

type Reports struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

type Logging struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Detailed bool   `yaml:"detailed"`
	Tracing  bool   `yaml:"tracing"`
}

type Config struct {
	Upstream Upstream `yaml:"upstream"`
	Batch    Batch    `yaml:"batch"`
	Store    Store    `yaml:"store"`
	Server   Server   `yaml:"server"`
	Jobs     Jobs     `yaml:"jobs"`
	Reports  Reports  `yaml:"reports"`
	Logging  Logging  `yaml:"logging"`
}

// BrowserHeaders is the header set sent on both the handshake and the CSV requests.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/84.0.4147.135 Safari/537.36",
		"Accept":          "*/*",
		"Accept-Encoding": "gzip, deflate, br",
		"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8",
		"Cache-Control":   "no-cache",
		"Connection":      "keep-alive",
	}
}

func Default() Config {
	return Config{
		Upstream: Upstream{
			EntryURL:              "https://www.nseindia.com/",
			CSVURLTemplate:        "https://nsearchives.nseindia.com/products/content/sec_bhavdata_full_{dd}{mm}{yyyy}.csv",
			BatchTimeoutSec:       15,
			InteractiveTimeoutSec: 4,
			HandshakePauseMs:      2000,
			Headers:               BrowserHeaders(),
		},
		Batch: Batch{
			RefreshInterval:   50,
			RequestDelayMs:    3000,
			RefreshBackoffSec: 30,
			RefreshRetries:    1,
		},
		Store: Store{
			Driver:     DriverSQLite,
			DSN:        "bhavcopy.db",
			Database:   "market",
			Collection: "bhavcopy",
		},
		Server: Server{
			Addr:           ":8080",
			RateLimitRPS:   5,
			RateLimitBurst: 15,
			GinMode:        "release",
		},
		Jobs:    Jobs{RetentionMinutes: 24 * 60},
		Reports: Reports{Enabled: true, Dir: "logs", RetentionDays: 30},
		Logging: Logging{Level: "INFO", Format: "json"},
	}
}

func (c *Config) Validate() error {
	if c.Upstream.EntryURL == "" {
		return errors.New("upstream.entry_url cannot be empty")
	}
	for _, p := range []string{"{dd}", "{mm}", "{yyyy}"} {
		if !strings.Contains(c.Upstream.CSVURLTemplate, p) {
			return fmt.Errorf("upstream.csv_url_template must contain %s, got '%s'", p, c.Upstream.CSVURLTemplate)
		}
	}
	if c.Upstream.BatchTimeoutSec <= 0 || c.Upstream.InteractiveTimeoutSec <= 0 {
		return fmt.Errorf("upstream timeouts must be positive, got batch=%d interactive=%d",
			c.Upstream.BatchTimeoutSec, c.Upstream.InteractiveTimeoutSec)
	}
	if c.Upstream.HandshakePauseMs < 0 {
		return fmt.Errorf("upstream.handshake_pause_ms cannot be negative, got %d", c.Upstream.HandshakePauseMs)
	}
	if c.Batch.RefreshInterval <= 0 {
		return fmt.Errorf("batch.refresh_interval must be positive, got %d", c.Batch.RefreshInterval)
	}
	if c.Batch.RequestDelayMs < 0 || c.Batch.RefreshBackoffSec < 0 || c.Batch.RefreshRetries < 0 {
		return errors.New("batch delays and retries cannot be negative")
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver '%s'", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid store.driver '%s': must be 'sqlite', 'postgres', 'mongo' or 'memory'", c.Store.Driver)
	}
	if c.Store.Driver == DriverMongo && (c.Store.Database == "" || c.Store.Collection == "") {
		return errors.New("store.database and store.collection are required for mongo")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("server rate limit cannot be negative")
	}
	return nil
}

// Load reads path over the defaults, applies env overrides and validates.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if len(c.Upstream.Headers) == 0 {
		c.Upstream.Headers = BrowserHeaders()
	}

	applyEnv(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyEnv(c *Config) {
	setString(&c.Upstream.EntryURL, "BHAVCOPY_ENTRY_URL")
	setString(&c.Upstream.CSVURLTemplate, "BHAVCOPY_CSV_URL_TEMPLATE")
	setString(&c.Store.Driver, "BHAVCOPY_STORE_DRIVER")
	setString(&c.Store.DSN, "BHAVCOPY_STORE_DSN")
	setString(&c.Store.Database, "BHAVCOPY_STORE_DATABASE")
	setString(&c.Server.Addr, "BHAVCOPY_SERVER_ADDR")
	setString(&c.Reports.Dir, "BHAVCOPY_REPORTS_DIR")
	setInt(&c.Reports.RetentionDays, "BHAVCOPY_REPORTS_RETENTION_DAYS")
	setInt(&c.Batch.RequestDelayMs, "BHAVCOPY_REQUEST_DELAY_MS")
	setInt(&c.Batch.RefreshInterval, "BHAVCOPY_REFRESH_INTERVAL")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setBool(&c.Logging.Detailed, "LOG_DETAILED")
	setBool(&c.Logging.Tracing, "LOG_TRACING_ENABLED")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v == "true" || v == "1"
	}
}
