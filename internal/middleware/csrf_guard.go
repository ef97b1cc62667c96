package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

var (
	ErrCSRFMissing  = errors.New("csrf: token missing")
	ErrCSRFMismatch = errors.New("csrf: cookie and header differ")
)

// CSRFGuard implements the double submit cookie pattern. Safe methods receive
// a signed token cookie when they have none. Unsafe methods must echo the
// cookie value in the configured header.
func CSRFGuard(cfg *config.CSRF, baker web.Baker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cfg.CookieName)
			hasCookie := err == nil && cookie.Value != ""

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				token := ""
				if hasCookie {
					token = cookie.Value
				} else {
					fresh, err := baker.Bake()
					if err != nil {
						web.RespondInternalServerError(w, fmt.Errorf("bake csrf cookie: %w", err))
						return
					}
					http.SetCookie(w, fresh)
					token = fresh.Value
				}
				w.Header().Set(cfg.HeaderName, token)
				next.ServeHTTP(w, r)
				return
			}

			if !hasCookie {
				web.RespondForbidden(w, ErrCSRFMissing, message.Forbidden, nil)
				return
			}

			sent := r.Header.Get(cfg.HeaderName)
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(sent)) == 0 {
				web.RespondForbidden(w, ErrCSRFMismatch, message.Forbidden, nil)
				return
			}

			if err := baker.Check(cookie); err != nil {
				web.RespondForbidden(w, err, message.Forbidden, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
