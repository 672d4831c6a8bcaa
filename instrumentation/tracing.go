package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never log actual sensitive values (bearer tokens,
// authorization codes, client secrets, signing keys) in traces or metrics.
// Only log metadata such as token ids, client ids, expiry times, and
// validation results. Traces are persisted, replicated, and often readable
// by a wider audience than production systems.
const (
	// Flow attributes - SAFE to use for metadata only
	AttrClientID    = "oauth.client_id"    // Client identifier (non-secret)
	AttrUserAddress = "oauth.user_address" // Wallet address of the grant subject
	AttrScope       = "oauth.scope"        // Requested scopes
	AttrRedirectURI = "oauth.redirect_uri" // Redirect URI
	AttrState       = "oauth.state"        // Client state parameter
	AttrError       = "oauth.error"        // Error code
	AttrExpiresIn   = "oauth.expires_in"   // Token expiry duration

	// Ledger attributes
	AttrLedgerTokenID   = "ledger.token_id"  // Numeric ledger token id (non-secret)
	AttrLedgerOperation = "ledger.operation" // Gateway operation name
	AttrLedgerValid     = "ledger.valid"     // Validity check result (boolean)
	AttrLedgerRevoked   = "ledger.revoked"   // Whether the record is revoked (boolean)

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageResult    = "storage.result"

	// Security attributes
	AttrRateLimiterType = "security.rate_limiter.type"
	AttrClientIP        = "security.client_ip"
	AttrAuditEventType  = "security.audit.event_type"

	// HTTP attributes (in addition to standard semantic conventions)
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddFlowAttributes adds common flow attributes to a span (nil-safe)
func AddFlowAttributes(span trace.Span, clientID, userAddress, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if userAddress != "" {
		SetSpanAttributes(span, attribute.String(AttrUserAddress, userAddress))
	}
	if scope != "" {
		SetSpanAttributes(span, attribute.String(AttrScope, scope))
	}
}

// AddLedgerAttributes adds ledger operation attributes to a span (nil-safe)
func AddLedgerAttributes(span trace.Span, operation string, tokenID uint64) {
	SetSpanAttributes(span,
		attribute.String(AttrLedgerOperation, operation),
		attribute.Int64(AttrLedgerTokenID, int64(tokenID)),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}

// AddSecurityAttributes adds security-related attributes to a span (nil-safe)
//
// PRIVACY NOTE: Client IP addresses may be PII. Check
// instrumentation.ShouldLogClientIPs() before calling.
func AddSecurityAttributes(span trace.Span, clientIP string) {
	if clientIP != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientIP))
	}
}
