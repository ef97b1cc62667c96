package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

// LogRequest logs one line per request and observes its duration. Client
// addresses are truncated before they are logged.
func LogRequest(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			writer, ok := w.(*SafeResponseWriter)
			if !ok {
				writer = NewSafeResponseWriter(r.Context(), w)
			}

			next.ServeHTTP(writer, r)

			duration := time.Since(start)
			m.ObserveHTTP(r.Method, writer.Status(), duration)

			slog.Info("incoming request",
				"user_agent", r.UserAgent(),
				"ip", web.AnonymizeIP(web.ClientIP(r)),
				"method", r.Method,
				"url", r.URL.Path,
				"proto", r.Proto,
				slog.Int("status_code", writer.Status()),
				slog.Int("bytes", writer.BytesWritten()),
				"duration", duration,
			)
		})
	}
}
