package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	require.Equal(t, "https://www.nseindia.com/", cfg.Upstream.EntryURL)
	require.Equal(t, 15*time.Second, cfg.Upstream.BatchTimeout())
	require.Equal(t, 4*time.Second, cfg.Upstream.InteractiveTimeout())
	require.Equal(t, 50, cfg.Batch.RefreshInterval)
	require.Equal(t, 3*time.Second, cfg.Batch.RequestDelay())
	require.Equal(t, 30*time.Second, cfg.Batch.RefreshBackoff())
	require.Equal(t, 1, cfg.Batch.RefreshRetries)
	require.Equal(t, "*/*", cfg.Upstream.Headers["Accept"])
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
batch:
  refresh_interval: 10
  request_delay_ms: 0
store:
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Batch.RefreshInterval)
	require.Equal(t, time.Duration(0), cfg.Batch.RequestDelay())
	require.Equal(t, DriverMemory, cfg.Store.Driver)
	// untouched sections keep their defaults
	require.Equal(t, 30, cfg.Batch.RefreshBackoffSec)
	require.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BHAVCOPY_STORE_DRIVER", "postgres")
	t.Setenv("BHAVCOPY_STORE_DSN", "postgres://localhost/market")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Store.Driver)
	require.Equal(t, "postgres://localhost/market", cfg.Store.DSN)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"template without day", func(c *Config) { c.Upstream.CSVURLTemplate = "https://x/{mm}{yyyy}.csv" }},
		{"zero refresh interval", func(c *Config) { c.Batch.RefreshInterval = 0 }},
		{"negative delay", func(c *Config) { c.Batch.RequestDelayMs = -1 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }},
		{"sqlite without dsn", func(c *Config) { c.Store.DSN = "" }},
		{"zero timeout", func(c *Config) { c.Upstream.InteractiveTimeoutSec = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}

	c := Default()
	require.NoError(t, c.Validate())
}
