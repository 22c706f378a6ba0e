package middleware

import "net/http"

// Middleware wraps an http.Handler. It is used for concerns applied to the
// whole handler tree, ahead of Gin routing.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware. The first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
