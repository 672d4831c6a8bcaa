package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP resolves the originating client IP for a request.
//
// With trustProxy off, the connection's remote address is used directly.
// With trustProxy on, X-Forwarded-For is consulted first, then X-Real-IP.
// trustedProxyCount is the number of proxies under our control at the tail
// of the X-Forwarded-For chain; entries beyond those are attacker
// controlled and ignored.
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := forwardedClientIP(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := headerIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return remoteHost(r.RemoteAddr)
}

// forwardedClientIP picks the client entry out of an X-Forwarded-For chain.
// The header reads "client, proxy1, proxy2, ..." with our trusted proxies
// rightmost, so the client sits trustedProxyCount+1 entries from the end.
// A zero count is treated as one trusted proxy.
func forwardedClientIP(xff string, trustedProxyCount int) string {
	if xff == "" {
		return ""
	}

	entries := strings.Split(xff, ",")

	proxies := trustedProxyCount
	if proxies == 0 {
		proxies = 1
	}
	idx := len(entries) - proxies - 1
	if idx < 0 {
		idx = 0
	}

	return headerIP(strings.TrimSpace(entries[idx]))
}

// headerIP returns the value if it parses as an IP address, "" otherwise.
func headerIP(value string) string {
	if value == "" || net.ParseIP(value) == nil {
		return ""
	}
	return value
}

// remoteHost strips the port from a RemoteAddr value.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
