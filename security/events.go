package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Authorization flow events

	// EventCodeIssued is logged when an authorization code is issued
	EventCodeIssued = "authorization_code_issued"

	// EventCodeConsumed is logged when an authorization code is consumed during exchange
	EventCodeConsumed = "authorization_code_consumed"

	// Token lifecycle events

	// EventTokenMinted is logged when an exchange mints a new ledger token
	EventTokenMinted = "token_minted"

	// EventMintFailure is logged when the ledger rejects or fails a mint
	EventMintFailure = "mint_failure"

	// EventTokenVerified is logged when a bearer token is verified
	EventTokenVerified = "token_verified"

	// EventTokenRevoked is logged when a ledger token is revoked
	EventTokenRevoked = "token_revoked"

	// Failure events

	// EventAuthFailure is logged on authentication or grant failures
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a request is rate limited
	EventRateLimitExceeded = "rate_limit_exceeded"
)
