package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bhavcopy-ingest/internal/api"
	"bhavcopy-ingest/internal/config"
	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
)

// Session is one cookie jar obtained from the entry URL plus the number of fetches made with it.
type Session struct {
	client        *api.Client
	requests      int
	establishedAt time.Time
}

var _ interfaces.Session = (*Session)(nil)

func (s *Session) Requests() int { return s.requests }

func (s *Session) Touch() { s.requests++ }

func (s *Session) EstablishedAt() time.Time { return s.establishedAt }

// Client talks to the upstream archive. It keeps no per-session state.
type Client struct {
	entryURL    string
	csvTemplate string
	headers     map[string]string
	timeout     time.Duration
	pause       time.Duration
	clientOpts  []api.ClientOption
}

var _ interfaces.Upstream = (*Client)(nil)

type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHandshakePause waits d after a successful handshake before the session is handed out.
func WithHandshakePause(d time.Duration) Option {
	return func(c *Client) { c.pause = d }
}

// WithClientOptions passes extra options to every HTTP client the upstream creates.
func WithClientOptions(opts ...api.ClientOption) Option {
	return func(c *Client) { c.clientOpts = append(c.clientOpts, opts...) }
}

// New builds a batch-mode client: batch timeout and no handshake pause.
func New(cfg config.Upstream, opts ...Option) *Client {
	headers := cfg.Headers
	if len(headers) == 0 {
		headers = config.BrowserHeaders()
	}
	c := &Client{
		entryURL:    cfg.EntryURL,
		csvTemplate: cfg.CSVURLTemplate,
		headers:     headers,
		timeout:     cfg.BatchTimeout(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewInteractive builds a client for single-date requests: short timeout and the handshake pause.
func NewInteractive(cfg config.Upstream, opts ...Option) *Client {
	base := []Option{WithTimeout(cfg.InteractiveTimeout()), WithHandshakePause(cfg.HandshakePause())}
	return New(cfg, append(base, opts...)...)
}

// Establish performs the handshake against the entry URL with a fresh cookie jar.
func (c *Client) Establish(ctx context.Context) (interfaces.Session, error) {
	opts := append([]api.ClientOption{
		api.WithTimeout(c.timeout),
		api.WithHeaders(c.headers),
		api.WithLogging(true),
	}, c.clientOpts...)
	hc := api.NewClient(opts...)

	resp, err := hc.GET(ctx, c.entryURL)
	if err != nil {
		return nil, fmt.Errorf("session handshake: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HandshakeError{StatusCode: resp.StatusCode, URL: c.entryURL}
	}

	logger.Debug(ctx, "Upstream session established",
		"entry_url", c.entryURL,
		"cookies", len(hc.Cookies(c.entryURL)))

	if c.pause > 0 {
		t := time.NewTimer(c.pause)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return &Session{client: hc, establishedAt: time.Now()}, nil
}
