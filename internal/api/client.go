// Package api is the client for the catalog REST API. It is the only code
// that talks to the backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout bounds each request made with the default HTTP client.
const DefaultTimeout = 10 * time.Second

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token. It is consulted on every request.
// An empty token means the request is sent without credentials.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client performs typed calls against the catalog API.
type Client struct {
	baseURL string
	tokens  TokenSource
	doer    Doer
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithTimeout sets the timeout of the default HTTP client. It has no effect
// together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for per-request debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics registers request metrics with reg. Registering two clients
// with the same registry panics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newMetrics(reg) }
}

// New creates a client for the API at baseURL. Every path is appended to
// baseURL as is, so it should include any version prefix.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: c.timeout}
	}
	if c.tokens == nil {
		c.tokens = TokenFunc(func(context.Context) (string, error) { return "", nil })
	}
	return c, nil
}

// BaseURL returns the URL every request path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request and decodes a 2xx body into out when out is non-nil.
// Every failure is returned as a *RequestError. Nothing is retried.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	reqErr := func(status int, message string, err error) *RequestError {
		return &RequestError{Op: op, Method: method, Path: path, StatusCode: status, Message: message, Err: err}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return reqErr(0, "", fmt.Errorf("encoding request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return reqErr(0, "", fmt.Errorf("creating request: %w", err))
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return reqErr(0, "", fmt.Errorf("reading access token: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.doer.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.observe(op, codeTransportError, elapsed)
		c.logger.WarnContext(ctx, "api request failed",
			"op", op, "method", method, "path", path, "request_id", requestID, "error", err)
		return reqErr(0, "", err)
	}
	defer resp.Body.Close()

	c.metrics.observe(op, strconv.Itoa(resp.StatusCode), elapsed)
	c.logger.DebugContext(ctx, "api request",
		"op", op, "method", method, "path", path, "status", resp.StatusCode,
		"duration", elapsed.Round(time.Millisecond), "request_id", requestID)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return reqErr(resp.StatusCode, "", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &errBody)
		return reqErr(resp.StatusCode, strings.TrimSpace(errBody.Message), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return reqErr(resp.StatusCode, "", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
