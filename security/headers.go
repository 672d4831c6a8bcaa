package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders applies the standard security headers to a response.
// Token endpoints serve only JSON, so the policy is maximally strict: no
// framing, no resource loading, no caching.
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	h := w.Header()

	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")

	// HSTS only makes sense when the service itself is served over HTTPS.
	if parsed, err := url.Parse(serverURL); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// Responses carry codes and bearer tokens; never cache them.
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
}
