// Package observability wires OpenTelemetry tracing and metrics for the job
// pipeline and the HTTP API, and defines the health report served on /health.
//
//	shutdown, err := observability.Setup(ctx, cfg.Telemetry)
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("mediascribe"))
//	ctx, span := observability.StartSpan(ctx, observability.SpanJob)
//	defer observability.EndSpan(span, err)
//
// When telemetry is disabled the global otel providers are no-ops, so spans
// and instruments cost almost nothing.
package observability
