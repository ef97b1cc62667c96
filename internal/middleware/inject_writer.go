package middleware

import "net/http"

// InjectWriter wraps the response writer so later middlewares can read the
// status and byte count. It must be the outermost middleware.
func InjectWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(NewSafeResponseWriter(r.Context(), w), r)
	})
}
