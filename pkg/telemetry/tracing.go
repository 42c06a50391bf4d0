package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/entrhq/guitest/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/entrhq/guitest"

// Span attribute keys.
var (
	AttrRunID    = attribute.Key("guitest.run.id")
	AttrStoryID  = attribute.Key("guitest.story.id")
	AttrTestID   = attribute.Key("guitest.test.id")
	AttrTestKind = attribute.Key("guitest.test.kind")
	AttrPassed   = attribute.Key("guitest.test.passed")
	AttrProvider = attribute.Key("guitest.verify.provider")
)

// TracerProvider wraps the SDK provider so callers can flush on exit.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider installs a global tracer provider exporting spans as
// pretty-printed JSON to w.
func NewTracerProvider(w io.Writer, serviceVersion string) (*TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("guitest"),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return install(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)), nil
}

func install(p *sdktrace.TracerProvider) *TracerProvider {
	otel.SetTracerProvider(p)
	return &TracerProvider{provider: p}
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the guitest tracer from the global provider. Without a
// configured provider the otel default is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndTest closes a test span with the test's outcome.
func EndTest(span trace.Span, r types.TestResult) {
	span.SetAttributes(AttrPassed.Bool(r.Passed))
	if !r.Passed {
		span.SetStatus(codes.Error, r.Error)
	}
	span.End()
}

// EndRun closes a run span, recording err when the run could not complete.
func EndRun(span trace.Span, r *types.RunResult, err error) {
	if r != nil {
		span.SetAttributes(
			attribute.Int("guitest.run.total", r.TotalTests),
			attribute.Int("guitest.run.failed", r.FailedTests),
		)
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case r != nil && r.Failed():
		span.SetStatus(codes.Error, "tests failed")
	}
	span.End()
}
