package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/observability"
)

// slowRequest marks non-streaming requests worth a look.
const slowRequest = 500 * time.Millisecond

// RequestLogger logs each request at a level chosen by status. Health and
// version checks are not logged. Streaming responses are logged when the
// stream ends.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isHealthCheck(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency", latency.String(),
			"client", c.ClientIP(),
			"request_id", c.GetString(RequestIDKey),
		)
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		if latency > slowRequest && !isStream(c) {
			fields["slow"] = true
		}
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}
		logByStatus(log, fields, status)
	}
}

// Telemetry records a span and the request metrics for every routed
// request. metrics may be nil.
func Telemetry(metrics *observability.PipelineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanHTTPRequest,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String(observability.AttrRequestID, c.GetString(RequestIDKey)),
			),
		)
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		var err error
		if status >= 500 && len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		observability.EndSpan(span, err)
		metrics.RecordRequest(ctx, c.Request.Method, route, status, time.Since(start))
	}
}

func isHealthCheck(path string) bool {
	switch path {
	case "/health", "/health/live", "/health/ready", "/version":
		return true
	}
	return false
}

func isStream(c *gin.Context) bool {
	return strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
}

// logByStatus logs at error for 5xx, warn for 4xx and debug otherwise.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
