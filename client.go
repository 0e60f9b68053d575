package axnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Client issues requests through the orchestration pipeline: request
// metadata, tracing, timing, supersede-on-duplicate cancellation, response
// caching and bearer authentication, with a one-shot refresh-and-retry on
// 401. Each Client owns its cache, pending registry and token manager. It
// is safe for concurrent use.
type Client struct {
	config    Config
	overrides Overrides

	transport    Transport
	observer     Observer
	logger       Logger
	metrics      *MetricsCollector
	tracer       trace.Tracer
	cacheStore   CacheStore
	tokenStore   TokenStore
	interceptors []Interceptor
	idGen        func() string
	now          func() time.Time

	cache    *ResponseCache
	registry *PendingRegistry
	tokens   *TokenManager
	pipeline Handler

	validationError error
	closed          atomic.Bool
	closeOnce       sync.Once
}

// New constructs a Client from the documented defaults and opts. An invalid
// configuration does not panic: it is kept and every call fails with it as
// a SetupError. See ValidationError.
func New(opts ...Option) *Client {
	c := &Client{
		observer: NopObserver{},
		logger:   nopLogger(),
		idGen:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg, err := Resolve(c.overrides)
	c.config = cfg
	if err != nil {
		c.validationError = err
		c.logger.Error("invalid client configuration", "error", err)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}
	if c.metrics != nil {
		c.observer = MultiObserver{c.observer, c.metrics}
	}
	if c.tracer == nil {
		c.tracer = defaultTracer()
	}

	c.cache = NewResponseCache(cfg, c.cacheStore, c.now, c.logger)
	c.registry = NewPendingRegistry(cfg.CancellationEnabled)
	c.tokens = NewTokenManager(TokenManagerConfig{
		Store:     c.tokenStore,
		Exchange:  c.refreshExchange,
		Threshold: cfg.TokenRefreshThreshold,
		Timeout:   cfg.Timeout,
		Now:       c.now,
		Logger:    c.logger,
		Observer:  c.observer,
	})
	c.pipeline = c.buildPipeline()
	return c
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// Config returns a copy of the resolved configuration.
func (c *Client) Config() Config {
	return c.config.clone()
}

// Tokens exposes the token manager, for seeding a token after login or
// forcing a refresh.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// Cache exposes the response cache.
func (c *Client) Cache() *ResponseCache {
	return c.cache
}

// Metrics returns the metrics collector, or nil.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}

// PendingCount returns the number of tracked in-flight reads.
func (c *Client) PendingCount() int {
	return c.registry.Len()
}

// CancelPending cancels the in-flight read matching method, url and params.
// The canceled call settles as a CanceledError.
func (c *Client) CancelPending(method, rawURL string, params url.Values) bool {
	target, err := c.resolveURL(rawURL)
	if err != nil {
		return false
	}
	return c.registry.CancelIfPresent(NewIdentity(method, target, params))
}

// Close stops the cache sweeper and cancels pending requests. Calls made
// after Close fail with a SetupError.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if n := c.registry.CancelAll(errors.Wrap(context.Canceled, "client closed")); n > 0 {
			c.logger.Debug("canceled pending requests on close", "count", n)
		}
		c.cache.Close()
	})
	return nil
}

// Get issues a GET and returns the response payload.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, opts ...RequestOption) ([]byte, error) {
	return c.payload(c.Do(ctx, http.MethodGet, rawURL, params, nil, opts...))
}

// Post issues a POST with data as the body and returns the response payload.
func (c *Client) Post(ctx context.Context, rawURL string, data any, opts ...RequestOption) ([]byte, error) {
	return c.payload(c.Do(ctx, http.MethodPost, rawURL, nil, data, opts...))
}

// Put issues a PUT with data as the body and returns the response payload.
func (c *Client) Put(ctx context.Context, rawURL string, data any, opts ...RequestOption) ([]byte, error) {
	return c.payload(c.Do(ctx, http.MethodPut, rawURL, nil, data, opts...))
}

// Delete issues a DELETE and returns the response payload.
func (c *Client) Delete(ctx context.Context, rawURL string, opts ...RequestOption) ([]byte, error) {
	return c.payload(c.Do(ctx, http.MethodDelete, rawURL, nil, nil, opts...))
}

// Do issues a request with any method. data is sent as-is when it is a
// []byte, string or io.Reader and JSON-encoded otherwise.
func (c *Client) Do(ctx context.Context, method, rawURL string, params url.Values, data any, opts ...RequestOption) (*Response, error) {
	req, err := c.newRequest(method, rawURL, params, data, opts...)
	if err != nil {
		c.report(err)
		return nil, err
	}
	return c.execute(ctx, req)
}

func (c *Client) payload(resp *Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetJSON issues a GET and decodes the JSON payload into T.
func GetJSON[T any](ctx context.Context, c *Client, rawURL string, params url.Values, opts ...RequestOption) (T, error) {
	return decodeJSON[T](c.Get(ctx, rawURL, params, opts...))
}

// PostJSON issues a POST and decodes the JSON payload into T.
func PostJSON[T any](ctx context.Context, c *Client, rawURL string, data any, opts ...RequestOption) (T, error) {
	return decodeJSON[T](c.Post(ctx, rawURL, data, opts...))
}

// PutJSON issues a PUT and decodes the JSON payload into T.
func PutJSON[T any](ctx context.Context, c *Client, rawURL string, data any, opts ...RequestOption) (T, error) {
	return decodeJSON[T](c.Put(ctx, rawURL, data, opts...))
}

func decodeJSON[T any](data []byte, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrap(err, "decode response payload")
	}
	return out, nil
}

func (c *Client) newRequest(method, rawURL string, params url.Values, data any, opts ...RequestOption) (*Request, error) {
	req := &Request{
		Method:         strings.ToUpper(method),
		URL:            rawURL,
		Params:         params,
		Header:         c.defaultHeaders(),
		Timeout:        c.config.Timeout,
		cancelPrevious: true,
	}
	if c.closed.Load() {
		return nil, newSetupError("client closed", nil, req)
	}
	if req.Method == "" {
		return nil, newSetupError("missing request method", nil, req)
	}

	target, err := c.resolveURL(rawURL)
	if err != nil {
		return nil, newSetupError("malformed request url", err, req)
	}
	req.URL = target

	body, err := encodeBody(data)
	if err != nil {
		return nil, newSetupError("unencodable request body", err, req)
	}
	req.Body = body

	for _, opt := range opts {
		opt(req)
	}
	req.Identity = NewIdentity(req.Method, req.URL, req.Params)
	return req, nil
}

// resolveURL joins relative URLs to the base address.
func (c *Client) resolveURL(rawURL string) (string, error) {
	target := rawURL
	if base := c.config.BaseAddress; base != "" && !strings.Contains(rawURL, "://") {
		target = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rawURL, "/")
	}
	if target == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Scheme != "" && u.Host == "" {
		return "", errors.Newf("url %q has no host", target)
	}
	return target, nil
}

func (c *Client) defaultHeaders() http.Header {
	h := make(http.Header, len(c.config.Headers))
	for k, v := range c.config.Headers {
		h.Set(k, v)
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", UserAgent())
	}
	return h
}

func encodeBody(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return io.ReadAll(v)
	default:
		return json.Marshal(v)
	}
}

// refreshExchange posts the refresh token to the refresh endpoint through
// the raw transport, bypassing the pipeline.
func (c *Client) refreshExchange(ctx context.Context, refreshToken string) (RefreshResult, error) {
	target, err := c.resolveURL(c.config.RefreshEndpoint)
	if err != nil {
		return RefreshResult{}, newTokenRefreshError("malformed refresh endpoint", err)
	}
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return RefreshResult{}, newTokenRefreshError("encode refresh request", err)
	}

	req := &Request{
		ID:       c.idGen(),
		Method:   http.MethodPost,
		URL:      target,
		Body:     body,
		Header:   c.defaultHeaders(),
		Timeout:  c.config.Timeout,
		IssuedAt: c.now(),
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, req.ID)

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return RefreshResult{}, newTokenRefreshError("refresh endpoint unreachable", err)
	}
	if !resp.Success() {
		ce := newTokenRefreshError(fmt.Sprintf("refresh endpoint returned status %d", resp.StatusCode), nil)
		ce.StatusCode = resp.StatusCode
		ce.Body = resp.Data
		return RefreshResult{}, ce
	}

	var result RefreshResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return RefreshResult{}, newTokenRefreshError("decode refresh response", err)
	}
	return result, nil
}
