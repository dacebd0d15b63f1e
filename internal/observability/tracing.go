package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for every span in the service.
const TracerName = "weather-display"

var tracerProvider *sdktrace.TracerProvider

// Tracer returns the service tracer. Without InitTracing it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitTracing installs a Zipkin-exporting tracer provider. An empty url leaves
// the global no-op provider in place.
func InitTracing(serviceName, zipkinURL string) error {
	if zipkinURL == "" {
		return nil
	}
	exporter, err := zipkin.New(zipkinURL)
	if err != nil {
		return fmt.Errorf("create zipkin exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return nil
}

// shutdownTracing flushes buffered spans. No-op when tracing is disabled.
func shutdownTracing(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}
