// Package storage defines interfaces for persisting authorization flow state
// and registered clients. It supports swappable backend implementations;
// in-memory and mock backends are provided in subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by storage implementations. Callers match them
// with errors.Is.
var (
	// ErrCodeNotFound indicates the authorization code does not exist or was
	// already consumed.
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrCodeExpired indicates the authorization code exists but its lifetime
	// has passed.
	ErrCodeExpired = errors.New("authorization code expired")

	// ErrClientNotFound indicates no client is registered under the given ID.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientSecret indicates client authentication failed.
	ErrInvalidClientSecret = errors.New("invalid client credentials")
)

// FlowStore defines the interface for managing authorization codes.
// All methods accept context.Context for tracing and cancellation.
type FlowStore interface {
	// SaveAuthorizationCode saves an issued authorization code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode retrieves an authorization code without consuming it
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// AtomicConsumeAuthorizationCode atomically retrieves and deletes an
	// authorization code. Only ONE concurrent caller can succeed; all others
	// receive ErrCodeNotFound. Expired codes return ErrCodeExpired and are
	// removed.
	// SECURITY: This operation MUST be atomic to prevent concurrent code
	// exchange attacks.
	AtomicConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes an authorization code
	DeleteAuthorizationCode(ctx context.Context, code string) error
}

// ClientStore defines the interface for managing registered clients.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret validates a client's secret
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// ListClients lists all registered clients (for admin purposes)
	ListClients(ctx context.Context) ([]*Client, error)
}

// Client represents a registered client application
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash
	ClientType       string // "public" or "confidential"
	RedirectURIs     []string
	ClientName       string
	Scopes           []string
	CreatedAt        time.Time
}

// AuthorizationCode represents an issued authorization code binding a user's
// grant to a client. The code is single-use: consuming it removes it.
type AuthorizationCode struct {
	Code        string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	UserAddress string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
