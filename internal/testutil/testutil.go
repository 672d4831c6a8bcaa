// Package testutil provides testing utilities and helpers for the library.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/nft-oauth/ledger"
	"github.com/tokengate/nft-oauth/storage"
)

// TestSigningSecret is a deterministic 32-byte bearer signing secret for tests.
var TestSigningSecret = []byte("0123456789abcdef0123456789abcdef")

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.now = t
}

// GenerateTestClient creates a test client registration whose secret is "secret".
func GenerateTestClient() *storage.Client {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash test client secret: %v", err))
	}
	return &storage.Client{
		ClientID:         "client_001",
		ClientSecretHash: string(hash),
		ClientType:       "confidential",
		RedirectURIs:     []string{"https://app.example.com/callback"},
		ClientName:       "Test Client",
		Scopes:           []string{"read", "write"},
		CreatedAt:        time.Now(),
	}
}

// GenerateTestAuthorizationCode creates a test authorization code
func GenerateTestAuthorizationCode() *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:        GenerateRandomString(32),
		ClientID:    "client_001",
		RedirectURI: "https://app.example.com/callback",
		Scope:       "read write",
		State:       GenerateRandomString(16),
		UserAddress: "0xAlice",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
}

// GenerateTestMintRequest creates a test ledger mint request
func GenerateTestMintRequest() ledger.MintRequest {
	return ledger.MintRequest{
		Subject:   "0xAlice",
		ClientID:  "client_001",
		Scope:     "read write",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}
