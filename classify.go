package axnext

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
)

// execute runs req through the pipeline, classifies the outcome and applies
// the one-shot refresh-and-retry policy for 401 responses.
func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	if c.validationError != nil {
		err := newSetupError("invalid client configuration", c.validationError, req)
		c.report(err)
		return nil, err
	}

	resp, err := c.exchange(ctx, req)
	if err == nil {
		return resp, nil
	}

	if c.recoverable(req, err) {
		resp, err = c.refreshAndRetry(ctx, req, err)
		if err == nil {
			return resp, nil
		}
	}

	c.report(err)
	return nil, err
}

// exchange performs one pass through the pipeline.
func (c *Client) exchange(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.pipeline.Handle(ctx, req)
	return classify(ctx, req, resp, err)
}

// classify maps a raw pipeline outcome onto the error taxonomy. Errors that
// are already classified pass through unchanged.
func classify(ctx context.Context, req *Request, resp *Response, err error) (*Response, error) {
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) {
			return nil, ce
		}
		if cause, ok := canceledCause(ctx, err); ok {
			return nil, newClientError(ErrorTypeCanceled, "request canceled", cause, req)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newClientError(ErrorTypeTransport, "request timed out", err, req)
		}
		return nil, newSetupError("interceptor failed", err, req)
	}
	if resp == nil {
		return nil, newClientError(ErrorTypeTransport, "no response received", nil, req)
	}
	if resp.Success() {
		return resp, nil
	}

	var ce *ClientError
	if resp.StatusCode == http.StatusNotFound {
		ce = newClientError(ErrorTypeNotFound, "resource not found", nil, req)
	} else {
		ce = newClientError(ErrorTypeResponse, http.StatusText(resp.StatusCode), nil, req)
	}
	ce.StatusCode = resp.StatusCode
	ce.Body = resp.Data
	return nil, ce
}

// recoverable reports whether err is a first-attempt 401 that the refresh
// path may recover.
func (c *Client) recoverable(req *Request, err error) bool {
	if !c.config.ErrorHandlingEnabled || !c.config.TokenRefreshEnabled || req.Attempt > 0 {
		return false
	}
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrorTypeResponse && ce.StatusCode == http.StatusUnauthorized
}

// refreshAndRetry refreshes the token and re-issues req once. With retries
// disabled the refresh still runs and the original 401 is returned.
func (c *Client) refreshAndRetry(ctx context.Context, req *Request, original error) (*Response, error) {
	c.logger.Info("unauthorized response, refreshing token", "requestID", req.ID, "url", req.URL)

	if _, err := c.tokens.Refresh(ctx); err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.Type == ErrorTypeTokenRefresh {
			// The refresh error is shared by every waiter; annotate a copy.
			annotated := *ce
			annotated.Request = req
			annotated.RequestID = req.ID
			annotated.Method = req.Method
			annotated.URL = req.URL
			annotated.Attempt = req.Attempt
			return nil, &annotated
		}
		if cause, ok := canceledCause(ctx, err); ok {
			return nil, newClientError(ErrorTypeCanceled, "canceled while refreshing token", cause, req)
		}
		return nil, newClientError(ErrorTypeTokenRefresh, "token refresh failed", err, req)
	}

	if !c.config.RetryEnabled {
		return nil, original
	}

	if err := sleepContext(ctx, c.config.RetryDelay); err != nil {
		if cause, ok := canceledCause(ctx, err); ok {
			return nil, newClientError(ErrorTypeCanceled, "canceled before retry", cause, req)
		}
		return nil, newClientError(ErrorTypeTransport, "request timed out before retry", err, req)
	}

	retry := req.Clone()
	retry.Attempt = req.Attempt + 1
	// A retry never supersedes a newer duplicate issued while refreshing.
	retry.cancelPrevious = false
	retry.Header.Del("Authorization")

	c.logger.Info("retrying request with refreshed token", "requestID", retry.ID, "attempt", retry.Attempt)
	return c.exchange(ctx, retry)
}

// report forwards a final failure to the observer. Supersessions are also
// announced through CancellationObserver.
func (c *Client) report(err error) {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return
	}

	if ce.Type == ErrorTypeCanceled {
		c.logger.Debug("request canceled", "requestID", ce.RequestID, "url", ce.URL, "cause", ce.Cause)
		if errors.Is(ce.Cause, ErrSuperseded) && ce.Request != nil {
			if co, ok := c.observer.(CancellationObserver); ok {
				co.OnSuperseded(ce.Request.Descriptor())
			}
		}
	}

	if !c.config.ErrorHandlingEnabled {
		return
	}
	if ce.Type != ErrorTypeCanceled {
		c.logger.Debug("request failed", "requestID", ce.RequestID, "type", ce.Type, "status", ce.StatusCode)
	}
	c.observer.OnUnhandledError(ce)
}
