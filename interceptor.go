package axnext

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// HeaderRequestID carries the request ID stamped by the metadata stage.
const HeaderRequestID = "X-Request-ID"

// Chain wraps final with interceptors. The first interceptor is the
// outermost.
func Chain(final Handler, interceptors ...Interceptor) Handler {
	current := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := current
		current = HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			return interceptor(ctx, req, next)
		})
	}
	return current
}

// buildPipeline assembles the fixed interceptor order: metadata, tracing,
// timing, cancellation, cache, auth, user interceptors, then dispatch.
func (c *Client) buildPipeline() Handler {
	interceptors := []Interceptor{
		c.metadataInterceptor,
		tracingInterceptor(c.tracer),
		c.timingInterceptor,
		c.cancellationInterceptor,
		c.cacheInterceptor,
		c.authInterceptor,
	}
	interceptors = append(interceptors, c.interceptors...)
	return Chain(HandlerFunc(c.dispatch), interceptors...)
}

func (c *Client) metadataInterceptor(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if req.ID == "" {
		req.ID = c.idGen()
	}
	req.IssuedAt = c.now()
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, req.ID)
	}
	return next.Handle(ctx, req)
}

func (c *Client) timingInterceptor(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if !c.config.PerformanceMonitoringEnabled {
		return next.Handle(ctx, req)
	}

	c.metrics.RecordRequestStart(req.Method)
	resp, err := next.Handle(ctx, req)
	c.metrics.RecordRequestEnd(req.Method)

	c.observer.OnDuration(req.Descriptor(), c.now().Sub(req.IssuedAt))
	return resp, err
}

// cancellationInterceptor gives each read request its own cancelable
// context and registers it, superseding any pending duplicate. The record
// is cleared when the request settles.
func (c *Client) cancellationInterceptor(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if !c.registry.Enabled() || !req.IsRead() {
		return next.Handle(ctx, req)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	handle, superseded := c.registry.Register(req.Identity, cancel, req.cancelPrevious)
	defer c.registry.Clear(handle)
	if superseded {
		c.logger.Debug("superseded pending request", "requestID", req.ID, "identity", req.Identity.String())
	}

	return next.Handle(ctx, req)
}

func (c *Client) cacheInterceptor(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if !c.cache.Enabled() || !req.IsRead() || req.skipCache {
		return next.Handle(ctx, req)
	}

	cached, hit := c.cache.Get(ctx, req.Identity)
	if co, ok := c.observer.(CacheObserver); ok {
		co.OnCacheLookup(req.Descriptor(), hit)
	}
	if hit {
		c.logger.Debug("cache hit", "requestID", req.ID, "identity", req.Identity.String())
		return cached, nil
	}

	resp, err := next.Handle(ctx, req)
	if err == nil && resp != nil && resp.Success() {
		c.cache.Set(ctx, req.Identity, resp)
	}
	return resp, err
}

func (c *Client) authInterceptor(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if !c.config.TokenRefreshEnabled {
		return next.Handle(ctx, req)
	}

	token, err := c.tokens.GetToken(ctx)
	switch {
	case errors.Is(err, ErrNoRefreshToken):
		c.logger.Debug("no credentials, sending unauthenticated", "requestID", req.ID)
	case err != nil:
		return nil, err
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return next.Handle(ctx, req)
}

type sendResult struct {
	resp *Response
	err  error
}

// dispatch hands the request to the transport. It settles as soon as ctx
// ends, even if the transport ignores cancellation.
func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if cause, ok := canceledCause(ctx, nil); ok {
		return nil, newClientError(ErrorTypeCanceled, "request canceled before dispatch", cause, req)
	}

	done := make(chan sendResult, 1)
	go func() {
		resp, err := c.transport.Send(ctx, req)
		done <- sendResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if errors.Is(context.Cause(ctx), ErrSuperseded) {
			return nil, newClientError(ErrorTypeCanceled, "request superseded", ErrSuperseded, req)
		}
		if r.err != nil {
			if cause, ok := canceledCause(ctx, r.err); ok {
				return nil, newClientError(ErrorTypeCanceled, "request canceled", cause, req)
			}
			return nil, newClientError(ErrorTypeTransport, "no response received", r.err, req)
		}
		if r.resp == nil {
			return nil, newClientError(ErrorTypeTransport, "transport returned no response", nil, req)
		}
		return r.resp, nil
	case <-ctx.Done():
		if cause, ok := canceledCause(ctx, nil); ok {
			return nil, newClientError(ErrorTypeCanceled, "request canceled", cause, req)
		}
		return nil, newClientError(ErrorTypeTransport, "request timed out", context.Cause(ctx), req)
	}
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
