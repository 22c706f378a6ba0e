package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mediascribe/logger"
)

const tracerName = "github.com/kbukum/mediascribe"

// InitTracer installs a batching OTLP/HTTP tracer provider and the W3C
// propagators as the otel globals. The caller shuts the provider down.
func InitTracer(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg)),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	))
	return tp, nil
}

// sampler samples every job at rate 1, none at 0, and a trace-id ratio in
// between. Child spans follow their parent.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// newResource describes the service. When the default resource and the
// semconv schema disagree, the service attributes are used on their own.
func newResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return resource.NewSchemaless(attrs...)
	}
	return res
}

// StartSpan starts a span on the mediascribe tracer of the global provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// StartSegmentSpan starts a span for work on one segment of a job.
func StartSegmentSpan(ctx context.Context, name string, index int) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attribute.Int(AttrSegment, index)))
}

// EndSpan marks span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Span names used by the pipeline.
const (
	SpanJob          = "job.run"
	SpanPlan         = "job.plan"
	SpanSelectEngine = "engine.select"
	SpanExtract      = "segment.extract"
	SpanTranscribe   = "segment.transcribe"
	SpanAssemble     = "job.assemble"
	SpanHTTPRequest  = "http.request"
)

// Attribute keys used by the pipeline.
const (
	AttrJobID     = "job.id"
	AttrEngine    = "engine.name"
	AttrSegment   = "segment.index"
	AttrSegments  = "segment.count"
	AttrState     = "job.state"
	AttrRequestID = "request.id"
	AttrErrorCode = "error.code"
)
