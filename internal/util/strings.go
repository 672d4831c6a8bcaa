// Package util provides small helpers shared across packages: string
// truncation for log safety, URL normalization, and IP classification for
// SSRF checks.
package util

import "strings"

// SafeTruncate returns at most maxLen leading characters of s without
// panicking on short inputs. Used when logging secrets such as
// authorization codes, where only a prefix may appear.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeURL prepares a URL for equality comparison by stripping trailing
// slashes, so registered and requested redirect URIs that differ only in a
// trailing slash compare equal.
func NormalizeURL(url string) string {
	return strings.TrimRight(url, "/")
}
