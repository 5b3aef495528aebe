package security

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the address that rate limiting and audit records key on.
//
// Proxy headers are consulted only when trustProxy is set, because both
// X-Forwarded-For and X-Real-IP are caller-controlled on direct connections.
// X-Forwarded-For grows one entry per hop, so with n trusted proxies the
// client address sits n+1 positions from the right of the chain. A proxyHops
// of zero is treated as a single trusted proxy.
func ClientIP(r *http.Request, trustProxy bool, proxyHops int) string {
	if trustProxy {
		if ip := forwardedClientIP(r.Header.Get("X-Forwarded-For"), proxyHops); ip != "" {
			return ip
		}
		if ip := r.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// forwardedClientIP picks the client entry out of an X-Forwarded-For chain.
// Entries appended by the trusted proxies are discarded from the right; a
// chain shorter than the trusted hop count falls back to the leftmost entry.
func forwardedClientIP(chain string, proxyHops int) string {
	if chain == "" {
		return ""
	}
	if proxyHops < 1 {
		proxyHops = 1
	}
	hops := strings.Split(chain, ",")
	at := len(hops) - proxyHops - 1
	if at < 0 {
		at = 0
	}
	ip := strings.TrimSpace(hops[at])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}
