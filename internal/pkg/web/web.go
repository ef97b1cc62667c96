package web

import (
	"net"
	"net/http"
	"net/netip"
)

const (
	HeaderContentType = "Content-Type"
	MimeJSON          = "application/json"
)

// ClientIP returns the address stored by NewContextWithClientIP, or the peer
// address of the connection. Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPCtxKey).(string); ok && ip != "" {
		return ip
	}
	return PeerIP(r)
}

// PeerIP returns the host part of RemoteAddr.
func PeerIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// AnonymizeIP truncates an address to its network prefix: /24 for IPv4 and
// /48 for IPv6. Unparseable input yields an empty string.
func AnonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}

	bits := 48
	if addr.Unmap().Is4() {
		addr = addr.Unmap()
		bits = 24
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.Addr().String()
}
