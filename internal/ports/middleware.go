package ports

import (
	"net/http"

	"github.com/Amund211/viewcache/internal/logging"
	"github.com/Amund211/viewcache/internal/ratelimiting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				ctx := r.Context()
				logging.FromContext(ctx).InfoContext(ctx, "Rate limit exceeded", "key", rateLimiter.KeyFor(r))
				w.Header().Set("Retry-After", "1")
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// ComposeMiddlewares applies the middlewares outermost first. No middlewares leaves the handler as is.
func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	switch len(middlewares) {
	case 0:
		return func(h http.HandlerFunc) http.HandlerFunc {
			return h
		}
	case 1:
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}
