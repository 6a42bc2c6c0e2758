package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"kutumb/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, User-Agent, and a parsed device name
// from the request and stores them in the context. Check-in audit entries
// record all three. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIP(r), ua, deviceName(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deviceName renders a human-readable "browser on OS" string, falling back to
// the raw User-Agent for unrecognized clients.
func deviceName(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	parsed := useragent.New(rawUA)
	name, _ := parsed.Browser()
	os := parsed.OS()
	switch {
	case name != "" && os != "":
		return name + " on " + os
	case name != "":
		return name
	case os != "":
		return os
	default:
		return rawUA
	}
}

// clientIP extracts the real client IP, handling proxies and load balancers.
func clientIP(r *http.Request) string {
	// X-Forwarded-For may hold a chain; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" (IPv6: "[::1]:port"), strip the port.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
