package observability

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

var (
	tracer     = otel.Tracer("bitpoet.dev/bitpoet-web/internal/platform/observability")
	propagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
)

// TraceMiddleware continues a W3C traceparent when present, starts a server span,
// and records the trace ids on the request context.
func TraceMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			// Renamed to the matched route pattern once the request completes.
			ctx, span := tracer.Start(ctx, SanitizeMethod(r.Method)+" "+UnmatchedRoute, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.scheme", scheme),
				attribute.String("url.path", r.URL.Path),
			)

			sc := span.SpanContext()
			if sc.IsValid() {
				ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{
					TraceID: sc.TraceID().String(),
					SpanID:  sc.SpanID().String(),
					Sampled: sc.IsSampled(),
				})
				propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
