package axnext

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Error kinds reported in ClientError.Type.
const (
	ErrorTypeTransport    = "Transport"
	ErrorTypeResponse     = "Response"
	ErrorTypeNotFound     = "NotFound"
	ErrorTypeTokenRefresh = "TokenRefresh"
	ErrorTypeCanceled     = "Canceled"
	ErrorTypeSetup        = "Setup"
)

// Sentinel errors, one per kind. errors.Is(err, ErrNotFound) reports whether
// err is a *ClientError of that kind.
var (
	ErrTransport    = &ClientError{Type: ErrorTypeTransport, Message: "no response received"}
	ErrResponse     = &ClientError{Type: ErrorTypeResponse, Message: "unexpected response status"}
	ErrNotFound     = &ClientError{Type: ErrorTypeNotFound, Message: "resource not found"}
	ErrTokenRefresh = &ClientError{Type: ErrorTypeTokenRefresh, Message: "token refresh failed"}
	ErrCanceled     = &ClientError{Type: ErrorTypeCanceled, Message: "request canceled"}
	ErrSetup        = &ClientError{Type: ErrorTypeSetup, Message: "request setup failed"}
)

// ErrSuperseded is the cancellation cause attached to a request that was
// replaced by a newer request with the same identity.
var ErrSuperseded = errors.New("axnext: superseded by a newer request")

// ErrNoRefreshToken is the cause of a TokenRefreshError raised when the
// token store holds no refresh token. Requests made in that state are sent
// without an Authorization header.
var ErrNoRefreshToken = errors.New("axnext: no refresh token available")

// ClientError is the single error type returned by Client calls.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	StatusCode int
	Body       []byte
	Request    *Request
	RequestID  string
	Method     string
	URL        string
	Attempt    int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsCanceled reports whether err is a CanceledError. Callers that issue
// superseding requests typically ignore these.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTokenRefresh reports whether err is a TokenRefreshError.
func IsTokenRefresh(err error) bool {
	return errors.Is(err, ErrTokenRefresh)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

func newClientError(errorType, message string, cause error, req *Request) *ClientError {
	ce := &ClientError{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		Request:   req,
		Timestamp: time.Now(),
	}
	if req != nil {
		ce.RequestID = req.ID
		ce.Method = req.Method
		ce.URL = req.URL
		ce.Attempt = req.Attempt
		if !req.IssuedAt.IsZero() {
			ce.Duration = ce.Timestamp.Sub(req.IssuedAt)
		}
	}
	return ce
}

func newSetupError(message string, cause error, req *Request) *ClientError {
	return newClientError(ErrorTypeSetup, message, cause, req)
}

func newTokenRefreshError(message string, cause error) *ClientError {
	return newClientError(ErrorTypeTokenRefresh, message, cause, nil)
}

// canceledCause reports whether the request context ended because the
// request was superseded or its caller gave up.
func canceledCause(ctx context.Context, err error) (error, bool) {
	if cause := context.Cause(ctx); cause != nil {
		if errors.Is(cause, ErrSuperseded) {
			return cause, true
		}
		if errors.Is(cause, context.Canceled) {
			return cause, true
		}
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return err, true
	}
	return nil, false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d\n", e.Attempt)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
