// Package security groups the request-facing hardening pieces of the token
// service: per-client rate limiting, client IP extraction behind proxies,
// response security headers, request ID propagation, token expiry checks
// with clock skew tolerance, and structured audit logging.
//
// # Rate Limiting
//
// RateLimiter tracks a token bucket per identifier (normally the client IP)
// and bounds its own memory with an LRU over tracked identifiers, so a
// distributed attack cannot grow the map without limit. When the capacity is
// reached the least recently seen identifier is evicted first, which favors
// clients that keep coming back over one-shot attack sources.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientIP) {
//	    // 429
//	}
//
// GetStats exposes CurrentEntries, TotalEvictions, TotalCleanups, and
// MemoryPressure (percent of capacity in use) for dashboards. Sustained
// pressure above 80% or a fast-growing eviction count usually means the
// capacity needs raising, or an attack is in progress.
//
// # Audit Logging
//
// Auditor emits one structured log line per security-relevant event, such as
// codes issued, grants rejected, tokens revoked, and rate limits tripped.
// Events carry the request ID when one is present in the context so they can
// be correlated with access logs.
package security
