package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newIPRequest(remoteAddr, forwarded, realIP string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	if realIP != "" {
		req.Header.Set("X-Real-IP", realIP)
	}
	return req
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		trustProxy bool
		proxyHops  int
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.168.1.100:12345",
			want:       "192.168.1.100",
		},
		{
			name:       "headers ignored without proxy trust",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1",
			realIP:     "203.0.113.2",
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded chain behind one proxy",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1, 10.0.0.2",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded chain behind two proxies",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1, 10.0.0.2, 10.0.0.3",
			trustProxy: true,
			proxyHops:  2,
			want:       "203.0.113.1",
		},
		{
			name:       "chain shorter than hop count",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1",
			trustProxy: true,
			proxyHops:  5,
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded entries are trimmed",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  " 203.0.113.1 , 10.0.0.2 ",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "invalid forwarded entry falls through",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "not-an-ip",
			trustProxy: true,
			want:       "10.0.0.1",
		},
		{
			name:       "real IP when no forwarded chain",
			remoteAddr: "10.0.0.1:12345",
			realIP:     "203.0.113.1",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "invalid real IP falls through",
			remoteAddr: "10.0.0.1:12345",
			realIP:     "nope",
			trustProxy: true,
			want:       "10.0.0.1",
		},
		{
			name:       "IPv6 remote address",
			remoteAddr: "[::1]:12345",
			want:       "::1",
		},
		{
			name:       "remote address without port",
			remoteAddr: "malformed",
			want:       "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newIPRequest(tt.remoteAddr, tt.forwarded, tt.realIP)
			if got := ClientIP(req, tt.trustProxy, tt.proxyHops); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP_ForwardedBeatsRealIP(t *testing.T) {
	req := newIPRequest("10.0.0.1:12345", "203.0.113.1", "203.0.113.2")
	if got := ClientIP(req, true, 0); got != "203.0.113.1" {
		t.Errorf("ClientIP() = %q, want the X-Forwarded-For client", got)
	}
}
