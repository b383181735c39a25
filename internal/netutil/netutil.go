package netutil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"unicode/utf8"
)

// MaxDescriptorLength bounds the client descriptor (User-Agent) the service
// looks at. Anything longer is cut at a rune boundary.
const MaxDescriptorLength = 512

// NormalizeIP accepts a bare address or host:port ("192.0.2.4:1234",
// "[2001:db8::1]:443") and returns the canonical address without zone.
func NormalizeIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		return addr.WithZone("").String(), true
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil {
			return addr.WithZone("").String(), true
		}
	}
	return raw, false
}

// ClientIP picks the origin address of r. Forwarding headers are honoured
// only when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, ok := NormalizeIP(first); ok {
				return ip
			}
		}
		if ip, ok := NormalizeIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	if ip, ok := NormalizeIP(r.RemoteAddr); ok {
		return ip
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

func TruncateDescriptor(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptorLength {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxDescriptorLength {
			return s[:i]
		}
		n++
	}
	return s
}
