package oauth

// AuthorizeRequest is the JSON body accepted by POST /oauth/authorize.
// The user's wallet address arrives pre-authenticated; wallet signature
// verification happens upstream of this service.
type AuthorizeRequest struct {
	// ClientID identifies the requesting client application
	ClientID string `json:"clientId"`

	// RedirectURI is where the client wants the code delivered
	RedirectURI string `json:"redirectUri"`

	// Scope is the space-delimited set of requested permissions
	Scope string `json:"scope,omitempty"`

	// State is the client's opaque CSRF token, echoed back verbatim
	State string `json:"state,omitempty"`

	// UserAddress is the authenticated wallet address granting access
	UserAddress string `json:"userAddress"`
}

// AuthorizeResponse is returned on successful authorization.
type AuthorizeResponse struct {
	// Code is the single-use authorization code
	Code string `json:"code"`

	// State echoes the request's state parameter
	State string `json:"state,omitempty"`

	// RedirectURI is the request's redirect URI with code and state appended
	// as query parameters, ready for the caller to redirect to
	RedirectURI string `json:"redirectUri"`
}

// TokenRequest is the JSON body accepted by POST /oauth/token.
type TokenRequest struct {
	// Code is the authorization code being exchanged
	Code string `json:"code"`

	// ClientID must match the code's issuing client byte-for-byte
	ClientID string `json:"clientId"`

	// ClientSecret authenticates confidential clients
	ClientSecret string `json:"clientSecret,omitempty"`

	// RedirectURI must match the code's redirect URI byte-for-byte
	RedirectURI string `json:"redirectUri"`
}

// TokenResponse is returned on successful exchange. Field names follow
// RFC 6749 section 5.1.
type TokenResponse struct {
	// AccessToken is the signed bearer token
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the bearer token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`

	// NFTTokenID is the ledger-assigned id of the freshly minted token record
	NFTTokenID uint64 `json:"nft_token_id"`

	// Scope is the granted scope
	Scope string `json:"scope,omitempty"`
}

// VerifyRequest is the JSON body accepted by POST /oauth/verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

// TokenInfo describes a ledger token record in API responses.
type TokenInfo struct {
	User      string `json:"user"`
	ClientID  string `json:"clientId"`
	Scope     string `json:"scope,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
	Revoked   bool   `json:"revoked"`
}

// VerifyResponse is returned when a bearer token passes both the local
// signature check and the ledger validity check.
type VerifyResponse struct {
	Valid       bool       `json:"valid"`
	UserAddress string     `json:"userAddress"`
	ClientID    string     `json:"clientId"`
	Scope       string     `json:"scope,omitempty"`
	TokenInfo   *TokenInfo `json:"tokenInfo,omitempty"`
}

// RevokeRequest is the JSON body accepted by POST /oauth/revoke.
type RevokeRequest struct {
	Token string `json:"token"`
}

// RevokeResponse is returned on successful revocation.
type RevokeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UserToken is one entry in a user's token listing.
type UserToken struct {
	TokenID   uint64 `json:"tokenId"`
	User      string `json:"user"`
	ClientID  string `json:"clientId"`
	Scope     string `json:"scope,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
	Revoked   bool   `json:"revoked"`
}

// UserTokensResponse is returned by GET /oauth/user/tokens/{address}.
type UserTokensResponse struct {
	Tokens []UserToken `json:"tokens"`
}

// ErrorResponse represents an OAuth error response body (RFC 6749 section 5.2)
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}
