// Package telemetry wires the gateway's trace pipeline: batched spans out
// of a stdout exporter, published through the global OpenTelemetry
// provider so the HTTP instrumentation picks them up.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ServiceName identifies this gateway in spans and in the inbound HTTP
// instrumentation.
const ServiceName = "assistant-gateway"

// Setup installs the process-wide tracer provider and returns the function
// that flushes and stops it.
func Setup(logger *slog.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	// Schemaless attributes merge cleanly with whatever schema the SDK's
	// default resource carries.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("trace pipeline ready", slog.String("service", ServiceName))
	return tp.Shutdown, nil
}
