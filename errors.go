package oauth

import (
	"fmt"
	"net/http"
)

// Error codes returned in the "error" field of error responses.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidGrant       = "invalid_grant"
	ErrorCodeInvalidClient      = "invalid_client"
	ErrorCodeInvalidScope       = "invalid_scope"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeServerError        = "server_error"
	ErrorCodeAccessDenied       = "access_denied"
	ErrorCodeInvalidRedirectURI = "invalid_redirect_uri"
	ErrorCodeRateLimitExceeded  = "rate_limit_exceeded"
)

// OAuthError is an OAuth 2.0 style error carrying the HTTP status it should
// be served with.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError builds an OAuthError from its parts.
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Constructors for the errors the service actually returns. Each one pins
// the error code to its HTTP status so handlers only pick the description.
var (
	// ErrInvalidRequest covers malformed or incomplete requests.
	ErrInvalidRequest = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidGrant covers authorization codes that are unknown, expired,
	// already consumed, or presented with mismatched parameters.
	ErrInvalidGrant = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient covers failed client authentication.
	ErrInvalidClient = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}

	// ErrInvalidScope covers scopes outside the configured allow list.
	ErrInvalidScope = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
	}

	// ErrInvalidToken covers bearer tokens that fail signature, expiry, or
	// on-ledger validity checks.
	ErrInvalidToken = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidToken, desc, http.StatusUnauthorized)
	}

	// ErrServerError covers internal failures such as a mint that did not commit.
	ErrServerError = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrAccessDenied covers revocations attempted by a party that owns
	// neither the token nor the operator role.
	ErrAccessDenied = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeAccessDenied, desc, http.StatusForbidden)
	}

	// ErrInvalidRedirectURI covers redirect targets that are unparseable,
	// unregistered, or point at internal address space.
	ErrInvalidRedirectURI = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRedirectURI, desc, http.StatusBadRequest)
	}
)
