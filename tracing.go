package axnext

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ebetap/ax-next"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// tracingInterceptor opens a client span per exchange and injects the trace
// context into the outgoing headers.
func tracingInterceptor(tracer trace.Tracer) Interceptor {
	propagator := otel.GetTextMapPropagator()
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		ctx, span := tracer.Start(ctx, "axnext "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("url.full", req.URL),
				attribute.String("axnext.request_id", req.ID),
				attribute.Int("axnext.attempt", req.Attempt),
			),
		)
		defer span.End()

		propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := next.Handle(ctx, req)
		if resp != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	}
}
