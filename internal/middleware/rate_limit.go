package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/ratelimit"
)

// RateLimit limits requests per client address within scope. A failing
// limiter lets the request through.
func RateLimit(limiter ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + web.ClientIP(r)

			allowed, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Error("Rate limiter failed, allowing request.", "scope", scope, "reason", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				secs := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				web.RespondTooManyRequests(w, fmt.Errorf("rate limit exceeded for %s", scope), message.TooManyRequest, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
