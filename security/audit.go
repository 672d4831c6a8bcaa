// Package security provides security features for the token service including
// rate limiting, audit logging, and secure header management.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogCodeIssued logs when an authorization code is issued
func (a *Auditor) LogCodeIssued(userAddress, clientID, ipAddress, scope string) {
	a.LogEvent(Event{
		Type:      EventCodeIssued,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogCodeConsumed logs when an authorization code is consumed during exchange
func (a *Auditor) LogCodeConsumed(userAddress, clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventCodeConsumed,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogTokenMinted logs when an authorization code exchange mints a ledger token
func (a *Auditor) LogTokenMinted(userAddress, clientID, ipAddress string, tokenID uint64) {
	a.LogEvent(Event{
		Type:      EventTokenMinted,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"token_id": tokenID,
		},
	})
}

// LogMintFailure logs when a ledger mint fails during exchange
func (a *Auditor) LogMintFailure(userAddress, clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventMintFailure,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenVerified logs the outcome of a bearer token verification
func (a *Auditor) LogTokenVerified(userAddress, clientID, ipAddress string, valid bool) {
	a.LogEvent(Event{
		Type:      EventTokenVerified,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"valid": valid,
		},
	})
}

// LogTokenRevoked logs when a ledger token is revoked
func (a *Auditor) LogTokenRevoked(userAddress, clientID, ipAddress string, tokenID uint64) {
	a.LogEvent(Event{
		Type:      EventTokenRevoked,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"token_id": tokenID,
		},
	})
}

// LogAuthFailure logs an authentication or grant failure
func (a *Auditor) LogAuthFailure(userAddress, clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventAuthFailure,
		UserID:    userAddress,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, userAddress string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		UserID:    userAddress,
		IPAddress: ipAddress,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
