package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediascribe/auth"
	"github.com/kbukum/mediascribe/errors"
)

// ClaimsKey is the gin context key of the verified token claims.
const ClaimsKey = "claims"

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Auth requires a valid bearer token granting scope. The token may also be
// passed as the access_token query parameter, for EventSource clients that
// cannot set headers.
func Auth(parser TokenParser, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			abort(c, errors.Unauthorized("Authorization header required."))
			return
		}
		claims, err := parser.Parse(token)
		if err != nil {
			abort(c, errors.Unauthorized("Invalid or expired token.").WithCause(err))
			return
		}
		if !claims.Allows(scope) {
			abort(c, errors.Forbidden(scope))
			return
		}
		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}

func abort(c *gin.Context, err *errors.AppError) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
