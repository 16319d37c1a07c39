package gate

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// FallbackIdentity partitions requests with neither a session nor a usable
// client address.
const FallbackIdentity = "127.0.0.1"

// SessionLookup resolves the signed-in user from raw request headers. It
// returns an empty id when there is no valid session.
type SessionLookup interface {
	UserIDFromHeaders(ctx context.Context, header http.Header) (string, error)
}

// clientIP returns the caller address. Proxy headers are only read when the
// service sits behind a trusted proxy.
func clientIP(header http.Header, remoteIP string, trustProxy bool) string {
	if trustProxy {
		if xff := header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := normalizeIP(first); ip != "" {
				return ip
			}
		}
		for _, name := range []string{"X-Real-IP", "CF-Connecting-IP"} {
			if ip := normalizeIP(header.Get(name)); ip != "" {
				return ip
			}
		}
	}
	return normalizeIP(remoteIP)
}

func normalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	ip := net.ParseIP(strings.Trim(raw, "[]"))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
