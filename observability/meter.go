package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/mediascribe/logger"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(newResource(config)),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.MetricInterval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds the instruments recorded by the job controller and
// the HTTP API. All methods are safe on a nil receiver.
type PipelineMetrics struct {
	jobsTotal       metric.Int64Counter
	jobsActive      metric.Int64UpDownCounter
	jobDuration     metric.Float64Histogram
	segmentsTotal   metric.Int64Counter
	fallbackTotal   metric.Int64Counter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewPipelineMetrics creates metric instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	jobsTotal, err := meter.Int64Counter("jobs.total",
		metric.WithDescription("Finished jobs by terminal state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs.total counter: %w", err)
	}

	jobsActive, err := meter.Int64UpDownCounter("jobs.active",
		metric.WithDescription("Number of jobs currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs.active gauge: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("jobs.duration",
		metric.WithDescription("Wall time of finished jobs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs.duration histogram: %w", err)
	}

	segmentsTotal, err := meter.Int64Counter("segments.total",
		metric.WithDescription("Processed segments by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating segments.total counter: %w", err)
	}

	fallbackTotal, err := meter.Int64Counter("engine.fallback.total",
		metric.WithDescription("Engines passed over during selection"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.fallback.total counter: %w", err)
	}

	requestTotal, err := meter.Int64Counter("http.request.total",
		metric.WithDescription("Total number of API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("http.request.duration",
		metric.WithDescription("Duration of API requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.request.duration histogram: %w", err)
	}

	return &PipelineMetrics{
		jobsTotal:       jobsTotal,
		jobsActive:      jobsActive,
		jobDuration:     jobDuration,
		segmentsTotal:   segmentsTotal,
		fallbackTotal:   fallbackTotal,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
	}, nil
}

// RecordJobStart increments the active job count.
func (m *PipelineMetrics) RecordJobStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsActive.Add(ctx, 1)
}

// RecordJobEnd decrements active jobs and records the terminal state.
func (m *PipelineMetrics) RecordJobEnd(ctx context.Context, engine, state string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("state", state),
	)
	m.jobsActive.Add(ctx, -1)
	m.jobsTotal.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSegment records one segment outcome ("ok", "extraction_failed",
// "transcribe_error").
func (m *PipelineMetrics) RecordSegment(ctx context.Context, engine, outcome string) {
	if m == nil {
		return
	}
	m.segmentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("outcome", outcome),
	))
}

// RecordFallback records an engine skipped during selection.
func (m *PipelineMetrics) RecordFallback(ctx context.Context, engine string) {
	if m == nil {
		return
	}
	m.fallbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordRequest records a completed API request.
func (m *PipelineMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}
