package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

// ResolveClientIP stores the client address used for rate limiting, consent
// and audit records. X-Real-IP and X-Forwarded-For are honoured only when the
// peer is one of the trusted proxies; otherwise the peer address is used.
func ResolveClientIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := web.PeerIP(r)
			if isTrusted(trusted, ip) {
				if fwd := forwardedIP(r, trusted); fwd != "" {
					ip = fwd
				}
			}

			next.ServeHTTP(w, r.WithContext(web.NewContextWithClientIP(r.Context(), ip)))
		})
	}
}

// forwardedIP returns X-Real-IP when the proxy set it. Otherwise it walks
// X-Forwarded-For from the nearest hop and returns the first address that is
// not a trusted proxy.
func forwardedIP(r *http.Request, trusted []netip.Prefix) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		if addr, err := netip.ParseAddr(ip); err == nil {
			return addr.Unmap().String()
		}
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			return ""
		}
		if !contains(trusted, addr) {
			return addr.Unmap().String()
		}
	}
	return ""
}

func isTrusted(trusted []netip.Prefix, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return contains(trusted, addr)
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
