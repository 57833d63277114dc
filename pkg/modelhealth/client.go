// Package modelhealth is the Go client for the Model Health motion capture service:
// sessions, subjects, activities, result downloads, calibration and analysis.
//
// A Client is safe for concurrent use. It must be released with Close, after which
// every call fails with domain.ErrClosed.
package modelhealth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/model-health/modelhealth-go/internal/fetch"
	"github.com/model-health/modelhealth-go/internal/transport"
	"github.com/model-health/modelhealth-go/internal/wire"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = transport.DefaultBaseURL

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type options struct {
	baseURL     string
	httpClient  HTTPDoer
	logger      *log.Logger
	concurrency int
	userAgent   string
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at another deployment.
func WithBaseURL(raw string) Option {
	return func(o *options) {
		o.baseURL = raw
	}
}

// WithHTTPClient replaces the HTTP client. Timeouts set on it apply to calibration
// streams too.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(o *options) {
		o.httpClient = doer
	}
}

// WithLogger overrides the logger used for dropped batch items and calibration events.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDownloadConcurrency bounds concurrent downloads per batch call.
func WithDownloadConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// Client is an authenticated handle to the service.
type Client struct {
	transport *transport.Client
	fetcher   *fetch.Fetcher
	logger    *log.Logger
}

// New builds a Client without contacting the service.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is empty", domain.ErrUnauthorized)
	}
	o := options{concurrency: fetch.DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := transport.Config{
		BaseURL:   o.baseURL,
		APIKey:    apiKey,
		UserAgent: o.userAgent,
		Logger:    o.logger,
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	tc, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		transport: tc,
		fetcher:   fetch.New(fetch.WithLogger(tc.Logger()), fetch.WithConcurrency(o.concurrency)),
		logger:    tc.Logger(),
	}, nil
}

// Connect builds a Client and verifies the API key against the service. A rejected
// key returns an error matching domain.ErrUnauthorized.
func Connect(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c, err := New(apiKey, opts...)
	if err != nil {
		return nil, err
	}
	var user wire.User
	if err := c.transport.Do(ctx, "connect", http.MethodGet, "users/me/", nil, nil, &user); err != nil {
		_ = c.Close()
		return nil, err
	}
	if user.ID == nil {
		_ = c.Close()
		return nil, &domain.InternalError{Op: "connect", Err: errors.New("account response without id")}
	}
	return c, nil
}

// Close releases the client and aborts in-flight calls. Calling it twice returns
// domain.ErrClosed.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.transport.Closed()
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.transport.Do(ctx, op, http.MethodGet, path, query, nil, out)
}

// decodeErr wraps a boundary decoding failure for op.
func decodeErr(op string, err error) error {
	return &domain.InternalError{Op: op, Err: err}
}

func escape(id string) string {
	return url.PathEscape(id)
}
