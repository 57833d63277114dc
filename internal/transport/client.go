// Package transport owns the authenticated connection to the Model Health service.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/model-health/modelhealth-go/internal/observability"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.modelhealth.io"

	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

// Doer is the subset of *http.Client the transport needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient Doer
	UserAgent  string
	Logger     *log.Logger
}

// Client issues authenticated requests. It is safe for concurrent use and must be
// released with Close; afterwards every call fails with domain.ErrClosed.
type Client struct {
	base      *url.URL
	apiKey    string
	http      Doer
	userAgent string
	logger    *log.Logger

	lifetime context.Context
	release  context.CancelFunc
	closed   atomic.Bool
}

// New constructs a Client. It performs no network I/O.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client timeout: calibration streams stay open for minutes and callers
		// bound every call through its context.
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[modelhealth] ", log.LstdFlags|log.Lshortfile)
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "modelhealth-go"
	}

	lifetime, release := context.WithCancel(context.Background())
	return &Client{
		base:      base,
		apiKey:    cfg.APIKey,
		http:      httpClient,
		userAgent: userAgent,
		logger:    logger,
		lifetime:  lifetime,
		release:   release,
	}, nil
}

// Logger returns the logger shared by packages built on this client.
func (c *Client) Logger() *log.Logger {
	return c.logger
}

// Close releases the client. In-flight requests are aborted. A second Close returns
// domain.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return domain.ErrClosed
	}
	c.release()
	if idle, ok := c.http.(interface{ CloseIdleConnections() }); ok {
		idle.CloseIdleConnections()
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// bind derives a request context that also ends when the client is closed.
func (c *Client) bind(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.closed.Load() {
		return nil, nil, domain.ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

// Do sends a JSON request to path and decodes a 2xx response into out. A nil out
// discards the body.
func (c *Client) Do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, cancel, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	resp, err := c.send(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.classify(ctx, op, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.InternalError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Stream sends a JSON request and returns the open response body. The caller must
// close it; closing also releases the request context.
func (c *Client) Stream(ctx context.Context, op, method, path string, body any) (io.ReadCloser, error) {
	ctx, cancel, err := c.bind(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, op, method, path, nil, body)
	if err != nil {
		cancel()
		return nil, err
	}
	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// Download fetches an absolute media URL. Media links are presigned, so no API key
// is attached.
func (c *Client) Download(ctx context.Context, op, rawURL string) ([]byte, error) {
	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("%s: invalid media url %q", op, rawURL)
	}

	ctx, cancel, err := c.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordRequest(op, 0, time.Since(start))
		return nil, c.classify(ctx, op, err)
	}
	defer resp.Body.Close()
	observability.RecordRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp, "")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body any) (*http.Response, error) {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	target := c.base.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordRequest(op, 0, time.Since(start))
		return nil, c.classify(ctx, op, err)
	}
	observability.RecordRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(op, resp, requestID)
	}
	return resp, nil
}

// classify maps a failed round trip onto the error taxonomy. Only the end of the
// request's own context is returned as a context error; timeouts raised by the HTTP
// client itself are transport failures.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	if c.closed.Load() {
		return domain.ErrClosed
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &domain.TransportError{Op: op, Err: err}
}

func statusError(op string, resp *http.Response, requestID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if echoed := resp.Header.Get(requestIDHeader); echoed != "" {
		requestID = echoed
	}
	return &domain.HTTPError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		RequestID:  requestID,
	}
}

// errorMessage extracts the server's explanation from an error body.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return string(trimmed)
	}
	for _, key := range []string{"detail", "error", "message"} {
		if text, ok := payload[key].(string); ok && text != "" {
			return text
		}
	}

	// Field validation errors arrive as {"field": ["reason", ...]}.
	parts := make([]string, 0, len(payload))
	for field, value := range payload {
		switch v := value.(type) {
		case []any:
			reasons := make([]string, 0, len(v))
			for _, item := range v {
				if text, ok := item.(string); ok {
					reasons = append(reasons, text)
				}
			}
			if len(reasons) > 0 {
				parts = append(parts, field+": "+strings.Join(reasons, " "))
			}
		case string:
			parts = append(parts, field+": "+v)
		}
	}
	if len(parts) == 0 {
		return string(trimmed)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
