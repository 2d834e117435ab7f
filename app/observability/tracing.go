package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer from the global provider, which is a no-op unless an
// exporter has been installed.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
