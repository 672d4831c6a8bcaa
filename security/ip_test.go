package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name              string
		remoteAddr        string
		xForwardedFor     string
		xRealIP           string
		trustProxy        bool
		trustedProxyCount int
		want              string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.168.1.100:12345",
			want:       "192.168.1.100",
		},
		{
			name:       "ipv6 remote address",
			remoteAddr: "[::1]:12345",
			want:       "::1",
		},
		{
			name:       "remote address without port",
			remoteAddr: "malformed",
			want:       "malformed",
		},
		{
			name:          "forwarded header ignored without trust",
			remoteAddr:    "10.0.0.1:12345",
			xForwardedFor: "203.0.113.1",
			want:          "10.0.0.1",
		},
		{
			name:       "real ip header ignored without trust",
			remoteAddr: "10.0.0.1:12345",
			xRealIP:    "203.0.113.1",
			want:       "10.0.0.1",
		},
		{
			name:          "forwarded header with trust",
			remoteAddr:    "10.0.0.1:12345",
			xForwardedFor: "203.0.113.1, 10.0.0.2",
			trustProxy:    true,
			want:          "203.0.113.1",
		},
		{
			name:       "real ip header with trust",
			remoteAddr: "10.0.0.1:12345",
			xRealIP:    "203.0.113.1",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:              "two trusted proxies",
			remoteAddr:        "10.0.0.1:12345",
			xForwardedFor:     "203.0.113.1, 10.0.0.2, 10.0.0.3",
			trustProxy:        true,
			trustedProxyCount: 2,
			want:              "203.0.113.1",
		},
		{
			name:              "more trusted proxies than chain entries",
			remoteAddr:        "10.0.0.1:12345",
			xForwardedFor:     "203.0.113.1",
			trustProxy:        true,
			trustedProxyCount: 5,
			want:              "203.0.113.1",
		},
		{
			name:          "whitespace in chain",
			remoteAddr:    "10.0.0.1:12345",
			xForwardedFor: " 203.0.113.1 , 10.0.0.2 ",
			trustProxy:    true,
			want:          "203.0.113.1",
		},
		{
			name:          "invalid forwarded value falls back to remote",
			remoteAddr:    "10.0.0.1:12345",
			xForwardedFor: "not-an-ip",
			trustProxy:    true,
			want:          "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := GetClientIP(req, tt.trustProxy, tt.trustedProxyCount); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetClientIP_ForwardedPreferredOverRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	req.Header.Set("X-Real-IP", "203.0.113.2")

	if got := GetClientIP(req, true, 0); got != "203.0.113.1" {
		t.Errorf("GetClientIP() = %q, want X-Forwarded-For value", got)
	}
}

func TestForwardedClientIP(t *testing.T) {
	tests := []struct {
		name    string
		xff     string
		proxies int
		want    string
	}{
		{"empty header", "", 1, ""},
		{"zero count defaults to one proxy", "203.0.113.1, 10.0.0.2", 0, "203.0.113.1"},
		{"client beyond untrusted entry", "203.0.113.1, 198.51.100.7, 10.0.0.2", 1, "198.51.100.7"},
		{"invalid entry", "garbage, 10.0.0.2", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := forwardedClientIP(tt.xff, tt.proxies); got != tt.want {
				t.Errorf("forwardedClientIP(%q, %d) = %q, want %q", tt.xff, tt.proxies, got, tt.want)
			}
		})
	}
}
