// Package ledger defines the interface to the external NFT contract that is
// authoritative for token validity and revocation. The core has no knowledge
// of the underlying contract encoding; it only speaks this narrow capability
// interface, which allows substituting an in-process simulation or a mock
// for testing.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Gateway implementations. Transport-level
// failures (network partition, timeout, reverted transaction) are returned
// wrapped in ErrUnavailable so callers can distinguish business rejections
// from gateway faults.
var (
	// ErrNotFound indicates the token id was never minted.
	ErrNotFound = errors.New("token record not found")

	// ErrClientUnregistered indicates the client id has no registered
	// address on the contract.
	ErrClientUnregistered = errors.New("client is not registered on the ledger")

	// ErrInvalidExpiry indicates the requested expiry is not strictly in
	// the future.
	ErrInvalidExpiry = errors.New("expiry must be in the future")

	// ErrUnauthorized indicates the requester is neither the record's
	// subject nor the ledger operator.
	ErrUnauthorized = errors.New("requester is not authorized to revoke this token")

	// ErrUnavailable indicates the ledger could not be reached or the
	// call timed out or reverted for non-business reasons.
	ErrUnavailable = errors.New("ledger unavailable")
)

// TokenRecord mirrors an on-chain token record. Once minted, every field
// except Revoked is immutable; Revoked transitions false to true exactly once.
type TokenRecord struct {
	// TokenID is the ledger-assigned, monotonically increasing identifier.
	TokenID uint64

	// Subject is the wallet address the grant was issued for.
	Subject string

	// ClientID identifies the OAuth client the grant belongs to.
	ClientID string

	// Scope is the space-delimited set of granted permissions.
	Scope string

	// ExpiresAt is the absolute on-chain expiry.
	ExpiresAt time.Time

	// Revoked reports whether the record has been revoked. One-way.
	Revoked bool

	// MetadataURI is the token metadata reference recorded at mint time.
	MetadataURI string
}

// Valid reports the derived validity predicate: not revoked and not expired.
// This is a point-in-time evaluation of a mirrored record; the gateway's
// IsValid is the authoritative check.
func (r *TokenRecord) Valid(now time.Time) bool {
	return !r.Revoked && r.ExpiresAt.After(now)
}

// MintRequest carries the immutable fields of a new token record.
type MintRequest struct {
	Subject     string
	ClientID    string
	Scope       string
	ExpiresAt   time.Time
	MetadataURI string
}

// Gateway is the typed interface to the external ledger. All calls may incur
// latency in the seconds range and may fail with ErrUnavailable; callers must
// not assume read-after-write consistency stronger than the ledger provides.
// All methods accept context.Context for cancellation and tracing.
type Gateway interface {
	// Mint commits a new immutable token record and returns its assigned id.
	// Fails with ErrClientUnregistered or ErrInvalidExpiry on contract-level
	// rejection. Emits a mint event observable by third parties.
	Mint(ctx context.Context, req MintRequest) (uint64, error)

	// IsValid reports the live validity predicate for a token id. False if
	// the id was never minted. Never fails for business reasons, only with
	// ErrUnavailable on transport error.
	IsValid(ctx context.Context, tokenID uint64) (bool, error)

	// Record fetches the token record for an id. Fails with ErrNotFound if
	// the id was never minted.
	Record(ctx context.Context, tokenID uint64) (*TokenRecord, error)

	// Revoke marks the record revoked. Fails with ErrUnauthorized unless
	// requester is the record's subject or the ledger operator. Revoking an
	// already-revoked record is a no-op at the ledger level.
	Revoke(ctx context.Context, tokenID uint64, requester string) error

	// ListUserTokens returns the ids of all tokens ever minted for a
	// subject in insertion order, including revoked and expired ones.
	ListUserTokens(ctx context.Context, subject string) ([]uint64, error)

	// HealthCheck verifies that the ledger is reachable. Useful for
	// readiness probes and startup validation.
	HealthCheck(ctx context.Context) error
}
