package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bhavcopy-ingest/internal/logger"

	"github.com/go-resty/resty/v2"
)

// Client is an HTTP client with its own cookie jar and default headers.
// Two clients never share cookies.
type Client struct {
	rc         *resty.Client
	baseURL    string
	useLogging bool
}

// logDebug logs debug messages using the global logger
func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

// logWarn logs warning messages using the global logger
func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the request timeout. It covers the whole exchange including the body read.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.rc.SetTimeout(timeout)
	}
}

// WithBaseURL sets the base URL for relative request paths
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.rc.SetHeader(key, value)
	}
}

// WithHeaders sets several default headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.rc.SetHeaders(headers)
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.rc.SetTransport(rt)
	}
}

// WithLogging enables request logging
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// NewClient creates a client with a fresh cookie jar.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		rc: resty.New().SetTimeout(30 * time.Second),
	}
	client.rc.OnAfterResponse(DecompressMiddleware)

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// String returns the response body as a string
func (r *Response) String() string {
	return string(r.Body)
}

// GET performs a GET request. Non-2xx statuses are returned as a Response, not an error;
// the error is reserved for transport failures and timeouts.
func (c *Client) GET(ctx context.Context, rawURL string, headers ...map[string]string) (*Response, error) {
	target := c.resolve(rawURL)

	req := c.rc.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers[0])
	}

	c.logDebug(ctx, "HTTP Request", "method", http.MethodGet, "url", target)

	start := time.Now()
	resp, err := req.Get(target)
	if err != nil {
		c.logWarn(ctx, "HTTP request failed", "method", http.MethodGet, "url", target, "error", err)
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}

	c.logDebug(ctx, "HTTP Response",
		"method", http.MethodGet,
		"url", target,
		"status", resp.StatusCode(),
		"duration", time.Since(start),
		"bodySize", len(resp.Body()))

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}, nil
}

// Cookies returns the cookies the jar would send to rawURL.
func (c *Client) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(c.resolve(rawURL))
	if err != nil {
		return nil
	}
	jar := c.rc.GetClient().Jar
	if jar == nil {
		return nil
	}
	return jar.Cookies(u)
}

func (c *Client) resolve(rawURL string) string {
	if c.baseURL == "" {
		return rawURL
	}
	if u, err := url.Parse(rawURL); err == nil && u.IsAbs() {
		return rawURL
	}
	return c.baseURL + rawURL
}
