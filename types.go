package axnext

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Request is the transport-neutral description of one exchange. The
// pipeline fills in ID, IssuedAt, Identity and Attempt before dispatch.
type Request struct {
	ID       string
	Method   string
	URL      string
	Params   url.Values
	Body     []byte
	Header   http.Header
	Timeout  time.Duration
	IssuedAt time.Time
	Identity Identity
	Attempt  int

	cancelPrevious bool
	skipCache      bool
}

// Clone returns a deep copy of r suitable for re-issuing.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Header = r.Header.Clone()
	if r.Params != nil {
		clone.Params = make(url.Values, len(r.Params))
		for k, v := range r.Params {
			clone.Params[k] = append([]string(nil), v...)
		}
	}
	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}
	return &clone
}

// IsRead reports whether the request is an idempotent read that may be
// cached and superseded.
func (r *Request) IsRead() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// Descriptor summarises the request for observers.
func (r *Request) Descriptor() RequestDescriptor {
	return RequestDescriptor{
		ID:       r.ID,
		Method:   r.Method,
		URL:      r.URL,
		Identity: r.Identity,
		Attempt:  r.Attempt,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int         `msgpack:"s"`
	Header     http.Header `msgpack:"h"`
	Data       []byte      `msgpack:"d"`
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Data:       append([]byte(nil), r.Data...),
	}
}

// Success reports whether the status is 2xx.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestDescriptor identifies a request in observer callbacks.
type RequestDescriptor struct {
	ID       string
	Method   string
	URL      string
	Identity Identity
	Attempt  int
}

// Handler executes a request. The innermost Handler is transport dispatch.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Interceptor wraps a Handler. Interceptors must call next or return an
// error; they never drop a failure.
type Interceptor func(ctx context.Context, req *Request, next Handler) (*Response, error)
