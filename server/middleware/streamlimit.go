package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediascribe/errors"
	"github.com/kbukum/mediascribe/resilience"
)

// StreamLimit caps the number of open event streams. Requests beyond the
// cap get 503 SERVICE_UNAVAILABLE. A nil bulkhead disables the cap.
func StreamLimit(b *resilience.Bulkhead) gin.HandlerFunc {
	if b == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		err := b.Execute(c.Request.Context(), func() error {
			c.Next()
			return nil
		})
		if err != nil {
			c.Header("Retry-After", "5")
			abort(c, errors.ServiceUnavailable("event stream"))
		}
	}
}
