// Package helpers holds small network helpers shared across the library.
package helpers

import "net"

// IPClassification is the security classification of an IP address,
// used when validating redirect URI hosts.
type IPClassification int

const (
	IPClassificationPublic IPClassification = iota
	IPClassificationLoopback
	IPClassificationPrivate
	IPClassificationLinkLocal
	IPClassificationUnspecified
)

// String returns a human-readable name for the classification.
func (c IPClassification) String() string {
	switch c {
	case IPClassificationPublic:
		return "public"
	case IPClassificationLoopback:
		return "loopback"
	case IPClassificationPrivate:
		return "private"
	case IPClassificationLinkLocal:
		return "link_local"
	case IPClassificationUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// ClassifyIP returns the security classification of an IP address.
// Link-local covers 169.254.0.0/16 and fe80::/10, which includes cloud
// metadata endpoints. Private covers RFC 1918 and fc00::/7.
func ClassifyIP(ip net.IP) IPClassification {
	switch {
	case ip == nil || ip.IsUnspecified():
		return IPClassificationUnspecified
	case ip.IsLoopback():
		return IPClassificationLoopback
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return IPClassificationLinkLocal
	case ip.IsPrivate():
		return IPClassificationPrivate
	default:
		return IPClassificationPublic
	}
}

// IsLoopbackHostname reports whether a hostname resolves statically to a
// loopback address. It covers "localhost", the whole 127.0.0.0/8 range,
// ::1, and IPv4-mapped forms. Expects a hostname without a port, as
// returned by url.URL.Hostname().
func IsLoopbackHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}

	// url.URL.Hostname strips brackets, but accept them anyway.
	if len(hostname) > 2 && hostname[0] == '[' && hostname[len(hostname)-1] == ']' {
		hostname = hostname[1 : len(hostname)-1]
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
