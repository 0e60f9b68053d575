package axnext

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return recorder, provider
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingSpanPerExchange(t *testing.T) {
	recorder, provider := newTestTracer(t)
	client := New(
		WithTransport(TransportFunc(func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{StatusCode: http.StatusOK}, nil
		})),
		WithoutTokenRefresh(),
		WithTracer(provider.Tracer("test")),
		WithRequestIDGenerator(func() string { return "req-1" }),
	)
	defer client.Close()

	_, err := client.Get(context.Background(), "https://api.example.com/data", nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "axnext GET", spans[0].Name())

	status, ok := spanAttr(spans[0], "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())

	id, ok := spanAttr(spans[0], "axnext.request_id")
	require.True(t, ok)
	assert.Equal(t, "req-1", id.AsString())
}

func TestTracingRecordsErrors(t *testing.T) {
	recorder, provider := newTestTracer(t)
	client := New(
		WithTransport(TransportFunc(func(ctx context.Context, req *Request) (*Response, error) {
			return nil, context.DeadlineExceeded
		})),
		WithoutTokenRefresh(),
		WithTracer(provider.Tracer("test")),
	)
	defer client.Close()

	_, err := client.Get(context.Background(), "https://api.example.com/data", nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
