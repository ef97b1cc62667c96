package middleware

import (
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

// Track records an audit entry for every request to the wrapped handler,
// after the handler has written its response.
func Track(rec audit.Recorder, action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writer, ok := w.(*SafeResponseWriter)
			if !ok {
				writer = NewSafeResponseWriter(r.Context(), w)
			}

			next.ServeHTTP(writer, r)

			actorID, _ := user.FromContext(r.Context())

			_ = rec.Record(r.Context(), audit.Entry{
				ActorID:   actorID,
				Action:    action,
				Resource:  resource,
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    writer.Status(),
				IPAddress: web.AnonymizeIP(web.ClientIP(r)),
				UserAgent: r.UserAgent(),
			})
		})
	}
}
