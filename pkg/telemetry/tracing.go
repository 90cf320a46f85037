// Package telemetry wraps each test run in an OpenTelemetry span. Spans are
// exported as JSON to a writer (usually a file next to the run log). When no
// provider is installed the global no-op tracer is used.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/entrhq/uirun/pkg/runner"

// Attribute keys for test spans
var (
	AttrTestID    = attribute.Key("uirun.test.id")
	AttrTestClass = attribute.Key("uirun.test.class")
	AttrTestName  = attribute.Key("uirun.test.name")
	AttrWorkerID  = attribute.Key("uirun.worker.id")
	AttrStatus    = attribute.Key("uirun.test.status")
	AttrSessionID = attribute.Key("uirun.session.id")
	AttrTarget    = attribute.Key("uirun.session.target")
)

// TracerProvider holds the OpenTelemetry tracer provider
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider creates a tracer provider exporting to w and installs
// it globally.
func NewTracerProvider(ctx context.Context, serviceName, environment string, w io.Writer) (*TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider}, nil
}

// Shutdown flushes pending spans and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the uirun tracer
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartTestSpan starts the span covering one test run.
func StartTestSpan(ctx context.Context, testID, className, testName, workerID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, className+"."+testName,
		trace.WithAttributes(
			AttrTestID.String(testID),
			AttrTestClass.String(className),
			AttrTestName.String(testName),
			AttrWorkerID.String(workerID),
		),
	)
}

// AddEvent adds an event to the current span
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// EndTestSpan records the outcome and ends span. err may be nil.
func EndTestSpan(span trace.Span, status string, err error) {
	span.SetAttributes(AttrStatus.String(status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
