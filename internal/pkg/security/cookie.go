package security

import (
	"net/http"
	"time"
)

// NewSecureCookie returns an http-only, secure, strict same-site cookie.
// A negative duration expires the cookie immediately.
func NewSecureCookie(name, val string, duration time.Duration) *http.Cookie {
	maxAge := int(duration.Seconds())
	if duration < 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
