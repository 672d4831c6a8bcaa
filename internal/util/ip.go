package util

import "net"

// IPClassification is the security class of an IP address, used when
// validating redirect URI hosts against SSRF.
type IPClassification int

const (
	// IPClassificationPublic is a publicly routable address.
	IPClassificationPublic IPClassification = iota
	// IPClassificationLoopback is 127.0.0.0/8 or ::1.
	IPClassificationLoopback
	// IPClassificationPrivate is RFC 1918 space or fc00::/7.
	IPClassificationPrivate
	// IPClassificationLinkLocal is 169.254.0.0/16 or fe80::/10, which
	// includes cloud metadata endpoints.
	IPClassificationLinkLocal
	// IPClassificationUnspecified is 0.0.0.0 or ::.
	IPClassificationUnspecified
)

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

// ClassifyIP places an IP into its security class. A nil IP classifies as
// unspecified. Everything that is not loopback, link-local, private, or
// unspecified is public.
func ClassifyIP(ip net.IP) IPClassification {
	switch {
	case ip == nil || ip.IsUnspecified():
		return IPClassificationUnspecified
	case ip.IsLoopback():
		return IPClassificationLoopback
	case IsLinkLocal(ip):
		return IPClassificationLinkLocal
	case ip.IsPrivate():
		return IPClassificationPrivate
	default:
		return IPClassificationPublic
	}
}

// IsLinkLocal reports whether ip is link-local unicast or multicast.
// 169.254.169.254, the common cloud metadata address, falls in this range.
func IsLinkLocal(ip net.IP) bool {
	return ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// IsPrivateOrInternal reports whether ip is anything other than a publicly
// routable address.
func IsPrivateOrInternal(ip net.IP) bool {
	return ClassifyIP(ip) != IPClassificationPublic
}

// IsLoopbackHostname reports whether a hostname (without port, as returned
// by url.URL.Hostname()) names a loopback address. "localhost" counts;
// 0.0.0.0 does not, it is unspecified.
func IsLoopbackHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}

	// url.URL.Hostname() usually strips IPv6 brackets, but accept them.
	if len(hostname) > 2 && hostname[0] == '[' && hostname[len(hostname)-1] == ']' {
		hostname = hostname[1 : len(hostname)-1]
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
