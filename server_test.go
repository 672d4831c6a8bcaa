package oauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tokengate/nft-oauth/internal/testutil"
	"github.com/tokengate/nft-oauth/ledger"
	ledgermem "github.com/tokengate/nft-oauth/ledger/memory"
	ledgermock "github.com/tokengate/nft-oauth/ledger/mock"
	"github.com/tokengate/nft-oauth/storage"
	"github.com/tokengate/nft-oauth/storage/memory"
)

func testConfig() *Config {
	return &Config{
		Issuer:        "https://auth.example.com",
		SigningSecret: testutil.TestSigningSecret,
		Operator:      "0xOperator",
	}
}

func setupTestServer(t *testing.T) (*Server, *memory.Store, *ledgermem.Ledger) {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Stop)

	led := ledgermem.New("0xOperator")
	led.RegisterClient("client_001", "0xClientAddr")

	if err := store.SaveClient(context.Background(), testutil.GenerateTestClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	srv, err := NewServer(testConfig(), led, store, store)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(srv.Stop)

	return srv, store, led
}

func authorizeTestUser(t *testing.T, srv *Server) *AuthorizeResponse {
	t.Helper()

	resp, err := srv.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:    "client_001",
		RedirectURI: "https://app.example.com/callback",
		Scope:       "read write",
		State:       "abc",
		UserAddress: "0xAlice",
	}, "203.0.113.5")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	return resp
}

func TestNewServer_Validation(t *testing.T) {
	store := memory.New()
	defer store.Stop()
	led := ledgermem.New("0xOperator")

	tests := []struct {
		name        string
		config      *Config
		gateway     ledger.Gateway
		flowStore   storage.FlowStore
		clientStore storage.ClientStore
	}{
		{"nil config", nil, led, store, store},
		{"nil gateway", testConfig(), nil, store, store},
		{"nil flow store", testConfig(), led, nil, store},
		{"nil client store", testConfig(), led, store, nil},
		{
			"short signing secret",
			&Config{Issuer: "https://auth.example.com", SigningSecret: []byte("short")},
			led, store, store,
		},
		{
			"bearer TTL exceeds ledger TTL",
			&Config{
				Issuer:        "https://auth.example.com",
				SigningSecret: testutil.TestSigningSecret,
				Lifetimes: LifetimeConfig{
					LedgerTokenTTL: time.Hour,
					BearerTokenTTL: 2 * time.Hour,
				},
			},
			led, store, store,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.config, tt.gateway, tt.flowStore, tt.clientStore); err == nil {
				t.Error("NewServer() expected error, got nil")
			}
		})
	}
}

func TestServer_Authorize(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	resp := authorizeTestUser(t, srv)

	if resp.Code == "" {
		t.Error("Code should not be empty")
	}
	if resp.State != "abc" {
		t.Errorf("State = %q, want %q", resp.State, "abc")
	}
	if !strings.Contains(resp.RedirectURI, "code="+resp.Code) {
		t.Errorf("RedirectURI %q should contain code parameter", resp.RedirectURI)
	}
	if !strings.Contains(resp.RedirectURI, "state=abc") {
		t.Errorf("RedirectURI %q should contain state parameter", resp.RedirectURI)
	}
}

func TestServer_Authorize_MissingFields(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	tests := []struct {
		name string
		req  *AuthorizeRequest
	}{
		{"missing clientId", &AuthorizeRequest{RedirectURI: "https://app.example.com/callback", UserAddress: "0xAlice"}},
		{"missing redirectUri", &AuthorizeRequest{ClientID: "client_001", UserAddress: "0xAlice"}},
		{"missing userAddress", &AuthorizeRequest{ClientID: "client_001", RedirectURI: "https://app.example.com/callback"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.Authorize(context.Background(), tt.req, "")
			assertOAuthErrorCode(t, err, ErrorCodeInvalidRequest)
		})
	}
}

func TestServer_Authorize_UnknownClient(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	_, err := srv.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:    "nobody",
		RedirectURI: "https://app.example.com/callback",
		UserAddress: "0xAlice",
	}, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidClient)
}

func TestServer_Authorize_UnregisteredRedirectURI(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	_, err := srv.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:    "client_001",
		RedirectURI: "https://evil.example.org/callback",
		UserAddress: "0xAlice",
	}, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidRedirectURI)
}

func TestServer_Authorize_UnsupportedScope(t *testing.T) {
	store := memory.New()
	defer store.Stop()
	led := ledgermem.New("0xOperator")
	if err := store.SaveClient(context.Background(), testutil.GenerateTestClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	config := testConfig()
	config.SupportedScopes = []string{"read", "write"}
	srv, err := NewServer(config, led, store, store)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer srv.Stop()

	_, err = srv.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:    "client_001",
		RedirectURI: "https://app.example.com/callback",
		Scope:       "read admin",
		UserAddress: "0xAlice",
	}, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidScope)
}

func TestServer_ExchangeAuthorizationCode(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	auth := authorizeTestUser(t, srv)

	resp, err := srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}, "203.0.113.5")
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error = %v", err)
	}

	if resp.AccessToken == "" {
		t.Error("AccessToken should not be empty")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want %q", resp.TokenType, "Bearer")
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", resp.ExpiresIn)
	}
	if resp.NFTTokenID != 1 {
		t.Errorf("NFTTokenID = %d, want 1", resp.NFTTokenID)
	}
	if resp.Scope != "read write" {
		t.Errorf("Scope = %q, want %q", resp.Scope, "read write")
	}

	claims, err := srv.Codec().Decode(resp.AccessToken)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if claims.TokenID != 1 {
		t.Errorf("claims.TokenID = %d, want 1", claims.TokenID)
	}
	if claims.Subject != "0xAlice" {
		t.Errorf("claims.Subject = %q, want %q", claims.Subject, "0xAlice")
	}
}

func TestServer_ExchangeAuthorizationCode_SingleUse(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	auth := authorizeTestUser(t, srv)

	req := &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}

	if _, err := srv.ExchangeAuthorizationCode(context.Background(), req, ""); err != nil {
		t.Fatalf("first exchange error = %v", err)
	}

	_, err := srv.ExchangeAuthorizationCode(context.Background(), req, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidGrant)
}

func TestServer_ExchangeAuthorizationCode_Expired(t *testing.T) {
	srv, store, _ := setupTestServer(t)

	code := testutil.GenerateTestAuthorizationCode()
	code.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.SaveAuthorizationCode(context.Background(), code); err != nil {
		t.Fatalf("SaveAuthorizationCode() error = %v", err)
	}

	req := &TokenRequest{
		Code:         code.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}

	_, err := srv.ExchangeAuthorizationCode(context.Background(), req, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidGrant)

	// The expired code is removed on the failed attempt.
	if _, err := store.GetAuthorizationCode(context.Background(), code.Code); !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("GetAuthorizationCode() error = %v, want ErrCodeNotFound", err)
	}
}

func TestServer_ExchangeAuthorizationCode_MismatchBurnsCode(t *testing.T) {
	store := memory.New()
	defer store.Stop()
	if err := store.SaveClient(context.Background(), testutil.GenerateTestClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	gateway := ledgermock.NewMockGateway()
	srv, err := NewServer(testConfig(), gateway, store, store)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer srv.Stop()

	auth, err := srv.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:    "client_001",
		RedirectURI: "https://app.example.com/callback",
		Scope:       "read",
		UserAddress: "0xAlice",
	}, "")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	// Mismatched redirect URI fails the exchange without touching the ledger.
	_, err = srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://other.example.com/callback",
	}, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidGrant)

	if got := gateway.Calls("Mint"); got != 0 {
		t.Errorf("Mint call count = %d, want 0", got)
	}

	// The code was consumed by the failed attempt and cannot be replayed,
	// even with the correct redirect URI.
	_, err = srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidGrant)
}

func TestServer_ExchangeAuthorizationCode_WrongSecret(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	auth := authorizeTestUser(t, srv)

	_, err := srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "wrong",
		RedirectURI:  "https://app.example.com/callback",
	}, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidClient)
}

func TestServer_ExchangeAuthorizationCode_MintFailure(t *testing.T) {
	store := memory.New()
	defer store.Stop()
	if err := store.SaveClient(context.Background(), testutil.GenerateTestClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	gateway := ledgermock.NewMockGateway()
	gateway.MintFunc = func(ctx context.Context, req ledger.MintRequest) (uint64, error) {
		return 0, ledger.ErrUnavailable
	}

	srv, err := NewServer(testConfig(), gateway, store, store)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer srv.Stop()

	auth, err := srv.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:    "client_001",
		RedirectURI: "https://app.example.com/callback",
		UserAddress: "0xAlice",
	}, "")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	req := &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}

	_, err = srv.ExchangeAuthorizationCode(context.Background(), req, "")
	assertOAuthErrorCode(t, err, ErrorCodeServerError)

	// The code stays consumed even though the mint failed.
	_, err = srv.ExchangeAuthorizationCode(context.Background(), req, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidGrant)
}

func TestServer_VerifyToken(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	auth := authorizeTestUser(t, srv)

	tokenResp, err := srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}, "")
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error = %v", err)
	}

	resp, err := srv.VerifyToken(context.Background(), tokenResp.AccessToken, "")
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if !resp.Valid {
		t.Error("Valid = false, want true")
	}
	if resp.UserAddress != "0xAlice" {
		t.Errorf("UserAddress = %q, want %q", resp.UserAddress, "0xAlice")
	}
	if resp.ClientID != "client_001" {
		t.Errorf("ClientID = %q, want %q", resp.ClientID, "client_001")
	}
	if resp.TokenInfo == nil {
		t.Fatal("TokenInfo should not be nil")
	}
	if resp.TokenInfo.User != "0xAlice" {
		t.Errorf("TokenInfo.User = %q, want %q", resp.TokenInfo.User, "0xAlice")
	}
	if resp.TokenInfo.Revoked {
		t.Error("TokenInfo.Revoked = true, want false")
	}
}

func TestServer_VerifyToken_Invalid(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	tests := []struct {
		name   string
		bearer string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.VerifyToken(context.Background(), tt.bearer, "")
			assertOAuthErrorCode(t, err, ErrorCodeInvalidToken)
		})
	}
}

func TestServer_VerifyToken_TamperedSignature(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	auth := authorizeTestUser(t, srv)

	tokenResp, err := srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}, "")
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error = %v", err)
	}

	tampered := tokenResp.AccessToken[:len(tokenResp.AccessToken)-2] + "xx"
	_, err = srv.VerifyToken(context.Background(), tampered, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidToken)
}

func TestServer_RevokeToken(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	auth := authorizeTestUser(t, srv)

	tokenResp, err := srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
		Code:         auth.Code,
		ClientID:     "client_001",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
	}, "")
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error = %v", err)
	}

	revokeResp, err := srv.RevokeToken(context.Background(), tokenResp.AccessToken, "")
	if err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if !revokeResp.Success {
		t.Error("Success = false, want true")
	}

	// The same bearer no longer verifies.
	_, err = srv.VerifyToken(context.Background(), tokenResp.AccessToken, "")
	assertOAuthErrorCode(t, err, ErrorCodeInvalidToken)
}

func TestServer_RevokeTokenID(t *testing.T) {
	srv, _, led := setupTestServer(t)

	id, err := led.Mint(context.Background(), testutil.GenerateTestMintRequest())
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	// A stranger cannot revoke someone else's token.
	err = srv.RevokeTokenID(context.Background(), id, "0xMallory")
	assertOAuthErrorCode(t, err, ErrorCodeAccessDenied)

	// The operator can revoke any token.
	if err := srv.RevokeTokenID(context.Background(), id, "0xOperator"); err != nil {
		t.Fatalf("RevokeTokenID() as operator error = %v", err)
	}
}

func TestServer_ListUserTokens(t *testing.T) {
	srv, _, led := setupTestServer(t)

	for i := 0; i < 2; i++ {
		auth := authorizeTestUser(t, srv)
		if _, err := srv.ExchangeAuthorizationCode(context.Background(), &TokenRequest{
			Code:         auth.Code,
			ClientID:     "client_001",
			ClientSecret: "secret",
			RedirectURI:  "https://app.example.com/callback",
		}, ""); err != nil {
			t.Fatalf("exchange %d error = %v", i, err)
		}
	}

	if err := led.Revoke(context.Background(), 1, "0xAlice"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	resp, err := srv.ListUserTokens(context.Background(), "0xAlice")
	if err != nil {
		t.Fatalf("ListUserTokens() error = %v", err)
	}
	if len(resp.Tokens) != 2 {
		t.Fatalf("len(Tokens) = %d, want 2", len(resp.Tokens))
	}
	if resp.Tokens[0].TokenID != 1 || resp.Tokens[1].TokenID != 2 {
		t.Errorf("token ids = %d, %d, want 1, 2", resp.Tokens[0].TokenID, resp.Tokens[1].TokenID)
	}
	if !resp.Tokens[0].Revoked {
		t.Error("Tokens[0].Revoked = false, want true")
	}
	if resp.Tokens[1].Revoked {
		t.Error("Tokens[1].Revoked = true, want false")
	}
}

func TestServer_RegisterClient(t *testing.T) {
	srv, store, _ := setupTestServer(t)

	client := &storage.Client{
		ClientID:   "client_002",
		ClientName: "Second Client",
	}
	if err := srv.RegisterClient(context.Background(), client, "hunter2"); err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}

	if client.ClientType != "confidential" {
		t.Errorf("ClientType = %q, want %q", client.ClientType, "confidential")
	}
	if client.ClientSecretHash == "hunter2" {
		t.Error("client secret was stored in plaintext")
	}

	if err := store.ValidateClientSecret(context.Background(), "client_002", "hunter2"); err != nil {
		t.Errorf("ValidateClientSecret() error = %v", err)
	}
	if err := store.ValidateClientSecret(context.Background(), "client_002", "wrong"); err == nil {
		t.Error("ValidateClientSecret() expected error for wrong secret")
	}
}

func TestServer_RegisterClient_Public(t *testing.T) {
	srv, store, _ := setupTestServer(t)

	client := &storage.Client{ClientID: "spa_client"}
	if err := srv.RegisterClient(context.Background(), client, ""); err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if client.ClientType != "public" {
		t.Errorf("ClientType = %q, want %q", client.ClientType, "public")
	}
	if err := store.ValidateClientSecret(context.Background(), "spa_client", ""); err != nil {
		t.Errorf("ValidateClientSecret() error = %v", err)
	}
}

func TestServer_ValidateRedirectURI(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"public https", "https://app.example.com/callback", false},
		{"public http", "http://app.example.com/callback", false},
		{"custom scheme", "myapp://callback", true},
		{"no host", "https:///callback", true},
		{"fragment", "https://app.example.com/callback#frag", true},
		{"loopback hostname", "http://localhost:8080/callback", true},
		{"loopback ip", "http://127.0.0.1/callback", true},
		{"private ip", "http://192.168.1.10/callback", true},
		{"link local ip", "http://169.254.169.254/latest/meta-data", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := srv.ValidateRedirectURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRedirectURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
		})
	}
}

func TestServer_ValidateRedirectURI_AllowPrivate(t *testing.T) {
	store := memory.New()
	defer store.Stop()
	led := ledgermem.New("0xOperator")

	config := testConfig()
	config.Security.AllowPrivateRedirectURIs = true
	srv, err := NewServer(config, led, store, store)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer srv.Stop()

	if err := srv.ValidateRedirectURI("http://localhost:8080/callback"); err != nil {
		t.Errorf("ValidateRedirectURI() error = %v", err)
	}
}

func assertOAuthErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", wantCode)
	}
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("error = %v, want *OAuthError", err)
	}
	if oauthErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", oauthErr.Code, wantCode)
	}
}
