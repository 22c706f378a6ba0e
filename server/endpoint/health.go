package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/version"
)

// Health reports the service and every checker. It answers 503 when any
// component is down.
func Health(service string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := observability.Check(c.Request.Context(), service, version.Get().Short(), checkers...)
		status := http.StatusOK
		if h.Status == observability.HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}

// Liveness confirms the process serves HTTP.
func Liveness(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive", "service": service})
	}
}
