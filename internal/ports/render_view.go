package ports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/Amund211/viewcache/internal/app"
	"github.com/Amund211/viewcache/internal/domain"
	"github.com/Amund211/viewcache/internal/logging"
	"github.com/Amund211/viewcache/internal/ratelimiting"
	"github.com/Amund211/viewcache/internal/reporting"
)

const ViewSourceHeader = "X-View-Source"

func MakeRenderViewHandler(
	renderView app.RenderView,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(20),
		ratelimiting.BurstSize(400),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		// The load balancer appends the address it received the request from
		ratelimiting.NewForwardedIPKeyFunc(1),
	)

	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("render_view"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("render_view"),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logicalPath := r.PathValue("path")

		if logicalPath == "" || !filepath.IsLocal(logicalPath) {
			http.Error(w, "invalid view path", http.StatusBadRequest)
			return
		}

		params := make(domain.Params)
		for name, values := range r.URL.Query() {
			if len(values) > 0 {
				params[name] = values[0]
			}
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("view", logicalPath))
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"view": logicalPath,
			},
		)

		result, err := renderView(ctx, logicalPath, params)
		if errors.Is(err, domain.ErrReservedParameter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		} else if errors.Is(err, domain.ErrViewNotFound) {
			http.Error(w, "view not found", http.StatusNotFound)
			return
		} else if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to render view: %w", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if result.Source != "" {
			w.Header().Set(ViewSourceHeader, string(result.Source))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(result.Output))
	}

	return middleware(handler)
}
