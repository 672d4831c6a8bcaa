package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/tokengate/nft-oauth/instrumentation"
	"github.com/tokengate/nft-oauth/internal/util"
	"github.com/tokengate/nft-oauth/ledger"
	"github.com/tokengate/nft-oauth/security"
	"github.com/tokengate/nft-oauth/storage"
	"github.com/tokengate/nft-oauth/token"
)

// Server implements the authorization code flow with ledger-backed tokens.
// Authorization codes are single use; successful exchange mints an on-chain
// token record and issues a signed bearer token bound to it.
type Server struct {
	gateway     ledger.Gateway
	codec       *token.Codec
	flowStore   storage.FlowStore
	clientStore storage.ClientStore
	auditor     *security.Auditor
	rateLimiter *security.RateLimiter
	inst        *instrumentation.Instrumentation
	logger      *slog.Logger
	config      *Config
}

// NewServer creates a token service server. The gateway and stores are
// injected so backends can be swapped (in-memory, RPC bridge, mocks).
func NewServer(config *Config, gateway ledger.Gateway, flowStore storage.FlowStore, clientStore storage.ClientStore) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("ledger gateway is required")
	}
	if flowStore == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if clientStore == nil {
		return nil, fmt.Errorf("client store is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := token.NewCodec(config.SigningSecret, config.Issuer, config.Lifetimes.BearerTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	s := &Server{
		gateway:     gateway,
		codec:       codec,
		flowStore:   flowStore,
		clientStore: clientStore,
		auditor:     security.NewAuditor(logger, config.Security.EnableAuditLogging),
		logger:      logger,
		config:      config,
	}

	if config.RateLimit.Rate > 0 {
		s.rateLimiter = security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, logger)
	}

	return s, nil
}

// SetInstrumentation attaches OpenTelemetry instrumentation. Call before
// serving traffic.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.inst = inst
}

// Codec exposes the bearer token codec, for callers that validate tokens
// out of band.
func (s *Server) Codec() *token.Codec {
	return s.codec
}

// Stop releases background resources (the rate limiter's cleanup goroutine).
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// HealthCheck reports whether the ledger is reachable.
func (s *Server) HealthCheck(ctx context.Context) error {
	return s.gateway.HealthCheck(ctx)
}

// generateRandomToken generates a cryptographically secure random token.
// Uses the same generation method as oauth2.GenerateVerifier for consistent
// entropy (256 bits, base64url).
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}

// Authorize validates an authorization request and issues a single-use
// authorization code bound to the client, redirect URI, scope and user
// address. The caller is responsible for having authenticated the user's
// wallet before invoking this.
func (s *Server) Authorize(ctx context.Context, req *AuthorizeRequest, clientIP string) (*AuthorizeResponse, error) {
	if req.ClientID == "" {
		return nil, ErrInvalidRequest("clientId is required")
	}
	if req.RedirectURI == "" {
		return nil, ErrInvalidRequest("redirectUri is required")
	}
	if req.UserAddress == "" {
		return nil, ErrInvalidRequest("userAddress is required")
	}

	if err := s.ValidateRedirectURI(req.RedirectURI); err != nil {
		return nil, ErrInvalidRedirectURI(err.Error())
	}

	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		s.auditor.LogAuthFailure(req.UserAddress, req.ClientID, clientIP, "unknown_client")
		return nil, ErrInvalidClient("unknown client")
	}

	// When the client registered redirect URIs, the requested one must be
	// among them.
	if len(client.RedirectURIs) > 0 && !containsURI(client.RedirectURIs, req.RedirectURI) {
		s.auditor.LogAuthFailure(req.UserAddress, req.ClientID, clientIP, "unregistered_redirect_uri")
		return nil, ErrInvalidRedirectURI("redirect URI is not registered for this client")
	}

	if err := s.validateScope(req.Scope); err != nil {
		return nil, err
	}

	now := time.Now()
	code := &storage.AuthorizationCode{
		Code:        generateRandomToken(),
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		State:       req.State,
		UserAddress: req.UserAddress,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.Lifetimes.AuthorizationCodeTTL),
	}

	if err := s.flowStore.SaveAuthorizationCode(ctx, code); err != nil {
		s.logger.Error("failed to save authorization code", "error", err)
		return nil, ErrServerError("failed to issue authorization code")
	}

	s.auditor.LogCodeIssued(req.UserAddress, req.ClientID, clientIP, req.Scope)
	if s.inst != nil {
		s.inst.Metrics().RecordCodeIssued(ctx, req.ClientID)
	}

	return &AuthorizeResponse{
		Code:        code.Code,
		State:       req.State,
		RedirectURI: buildRedirect(req.RedirectURI, code.Code, req.State),
	}, nil
}

// ExchangeAuthorizationCode consumes an authorization code and exchanges it
// for a bearer token backed by a freshly minted ledger record.
//
// The consume happens first and is never undone: a code that fails any later
// check (client mismatch, bad secret, mint failure) stays consumed and cannot
// be replayed.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, req *TokenRequest, clientIP string) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, ErrInvalidRequest("code is required")
	}
	if req.ClientID == "" {
		return nil, ErrInvalidRequest("clientId is required")
	}
	if req.RedirectURI == "" {
		return nil, ErrInvalidRequest("redirectUri is required")
	}

	authCode, err := s.flowStore.AtomicConsumeAuthorizationCode(ctx, req.Code)
	if err != nil {
		s.auditor.LogAuthFailure("", req.ClientID, clientIP, "invalid_authorization_code")
		s.recordExchange(ctx, req.ClientID, "invalid_code")
		if errors.Is(err, storage.ErrCodeExpired) {
			return nil, ErrInvalidGrant("authorization code expired")
		}
		return nil, ErrInvalidGrant("invalid authorization code")
	}
	s.auditor.LogCodeConsumed(authCode.UserAddress, req.ClientID, clientIP)

	// Byte-for-byte match against the stored request. The code is already
	// consumed at this point, so a mismatch burns it.
	if authCode.ClientID != req.ClientID {
		s.auditor.LogAuthFailure(authCode.UserAddress, req.ClientID, clientIP, "client_id_mismatch")
		s.recordExchange(ctx, req.ClientID, "client_mismatch")
		return nil, ErrInvalidGrant("client ID does not match authorization code")
	}
	if authCode.RedirectURI != req.RedirectURI {
		s.auditor.LogAuthFailure(authCode.UserAddress, req.ClientID, clientIP, "redirect_uri_mismatch")
		s.recordExchange(ctx, req.ClientID, "client_mismatch")
		return nil, ErrInvalidGrant("redirect URI does not match authorization code")
	}

	if err := s.clientStore.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		s.auditor.LogAuthFailure(authCode.UserAddress, req.ClientID, clientIP, "invalid_client_secret")
		s.recordExchange(ctx, req.ClientID, "invalid_client")
		return nil, ErrInvalidClient("client authentication failed")
	}

	expiresAt := time.Now().Add(s.config.Lifetimes.LedgerTokenTTL)
	tokenID, err := s.gateway.Mint(ctx, ledger.MintRequest{
		Subject:   authCode.UserAddress,
		ClientID:  authCode.ClientID,
		Scope:     authCode.Scope,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.logger.Error("ledger mint failed",
			"client_id", authCode.ClientID,
			"error", err)
		s.auditor.LogMintFailure(authCode.UserAddress, authCode.ClientID, clientIP, err.Error())
		s.recordExchange(ctx, req.ClientID, "mint_failure")
		return nil, ErrServerError("failed to mint token on ledger")
	}

	// The bearer token is issued only after the mint commits, so every
	// bearer in circulation references an existing ledger record.
	bearer, _, err := s.codec.Issue(authCode.UserAddress, authCode.ClientID, authCode.Scope, tokenID)
	if err != nil {
		s.logger.Error("failed to issue bearer token",
			"client_id", authCode.ClientID,
			"token_id", tokenID,
			"error", err)
		s.recordExchange(ctx, req.ClientID, "issue_failure")
		return nil, ErrServerError("failed to issue bearer token")
	}

	s.auditor.LogTokenMinted(authCode.UserAddress, authCode.ClientID, clientIP, tokenID)
	s.recordExchange(ctx, req.ClientID, "success")

	return &TokenResponse{
		AccessToken: bearer,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.codec.TTL().Seconds()),
		NFTTokenID:  tokenID,
		Scope:       authCode.Scope,
	}, nil
}

// VerifyToken checks a bearer token locally (signature, expiry) and then
// against the live ledger record (revocation, on-chain expiry). Both checks
// must pass.
func (s *Server) VerifyToken(ctx context.Context, bearer, clientIP string) (*VerifyResponse, error) {
	claims, err := s.codec.Decode(bearer)
	if err != nil {
		s.auditor.LogTokenVerified("", "", clientIP, false)
		s.recordVerification(ctx, "", false)
		return nil, invalidTokenError(err)
	}

	valid, err := s.gateway.IsValid(ctx, claims.TokenID)
	if err != nil {
		s.logger.Error("ledger validity check failed",
			"token_id", claims.TokenID,
			"error", err)
		return nil, ErrServerError("ledger unavailable")
	}
	if !valid {
		s.auditor.LogTokenVerified(claims.Subject, claims.ClientID, clientIP, false)
		s.recordVerification(ctx, claims.ClientID, false)
		return nil, ErrInvalidToken("token is revoked or expired on ledger")
	}

	resp := &VerifyResponse{
		Valid:       true,
		UserAddress: claims.Subject,
		ClientID:    claims.ClientID,
		Scope:       claims.Scope,
	}

	// Enrich with the ledger record when it can be fetched. Validity has
	// already been established; a record fetch failure is not fatal.
	if record, err := s.gateway.Record(ctx, claims.TokenID); err == nil {
		resp.TokenInfo = &TokenInfo{
			User:      record.Subject,
			ClientID:  record.ClientID,
			Scope:     record.Scope,
			ExpiresAt: record.ExpiresAt.Unix(),
			Revoked:   record.Revoked,
		}
	}

	s.auditor.LogTokenVerified(claims.Subject, claims.ClientID, clientIP, true)
	s.recordVerification(ctx, claims.ClientID, true)
	return resp, nil
}

// RevokeToken revokes the ledger record a bearer token references. The
// bearer's subject is the requester, so holders can only revoke their own
// tokens. Revocation is permanent; subsequent verification of any bearer
// bound to the record fails.
func (s *Server) RevokeToken(ctx context.Context, bearer, clientIP string) (*RevokeResponse, error) {
	claims, err := s.codec.Decode(bearer)
	if err != nil {
		return nil, invalidTokenError(err)
	}

	if err := s.revoke(ctx, claims.TokenID, claims.Subject, claims.ClientID, clientIP); err != nil {
		return nil, err
	}

	return &RevokeResponse{
		Success: true,
		Message: fmt.Sprintf("token %d revoked", claims.TokenID),
	}, nil
}

// RevokeTokenID revokes a ledger record directly by id on behalf of a
// requester, typically the configured operator. Intended for administrative
// use from Go callers; not exposed over HTTP.
func (s *Server) RevokeTokenID(ctx context.Context, tokenID uint64, requester string) error {
	return s.revoke(ctx, tokenID, requester, "", "")
}

func (s *Server) revoke(ctx context.Context, tokenID uint64, requester, clientID, clientIP string) error {
	if err := s.gateway.Revoke(ctx, tokenID, requester); err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnauthorized):
			s.auditor.LogAuthFailure(requester, clientID, clientIP, "revoke_unauthorized")
			return ErrAccessDenied("not authorized to revoke this token")
		case errors.Is(err, ledger.ErrNotFound):
			return ErrInvalidToken("token record not found")
		default:
			s.logger.Error("ledger revoke failed",
				"token_id", tokenID,
				"error", err)
			return ErrServerError("ledger unavailable")
		}
	}

	s.auditor.LogTokenRevoked(requester, clientID, clientIP, tokenID)
	if s.inst != nil {
		s.inst.Metrics().RecordTokenRevocation(ctx, clientID)
	}
	return nil
}

// ListUserTokens returns every token record ever minted for a subject,
// including revoked and expired ones, in mint order.
func (s *Server) ListUserTokens(ctx context.Context, address string) (*UserTokensResponse, error) {
	if address == "" {
		return nil, ErrInvalidRequest("address is required")
	}

	ids, err := s.gateway.ListUserTokens(ctx, address)
	if err != nil {
		s.logger.Error("ledger list failed", "error", err)
		return nil, ErrServerError("ledger unavailable")
	}

	resp := &UserTokensResponse{Tokens: make([]UserToken, 0, len(ids))}
	for _, id := range ids {
		record, err := s.gateway.Record(ctx, id)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				continue
			}
			return nil, ErrServerError("ledger unavailable")
		}
		resp.Tokens = append(resp.Tokens, UserToken{
			TokenID:   record.TokenID,
			User:      record.Subject,
			ClientID:  record.ClientID,
			Scope:     record.Scope,
			ExpiresAt: record.ExpiresAt.Unix(),
			Revoked:   record.Revoked,
		})
	}
	return resp, nil
}

// RegisterClient registers a client application. Confidential clients get
// their secret bcrypt-hashed before storage; public clients pass an empty
// secret.
func (s *Server) RegisterClient(ctx context.Context, client *storage.Client, clientSecret string) error {
	if client == nil || client.ClientID == "" {
		return ErrInvalidRequest("clientId is required")
	}

	if clientSecret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}
		client.ClientSecretHash = string(hash)
		if client.ClientType == "" {
			client.ClientType = "confidential"
		}
	} else if client.ClientType == "" {
		client.ClientType = "public"
	}

	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}

	return s.clientStore.SaveClient(ctx, client)
}

// ValidateRedirectURI checks a redirect URI for basic safety: http or https,
// a host, no fragment, and unless configured otherwise no loopback, private
// or link-local targets.
func (s *Server) ValidateRedirectURI(redirectURI string) error {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("redirect URI is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("redirect URI scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("redirect URI must include a host")
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect URI must not contain a fragment")
	}

	if s.config.Security.AllowPrivateRedirectURIs {
		return nil
	}

	hostname := u.Hostname()
	if util.IsLoopbackHostname(hostname) {
		return fmt.Errorf("redirect URI host must not be a loopback address")
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if class := util.ClassifyIP(ip); class != util.IPClassificationPublic {
			return fmt.Errorf("redirect URI host must be a public address, got %s", class)
		}
	}
	return nil
}

func (s *Server) validateScope(scope string) error {
	if scope == "" || len(s.config.SupportedScopes) == 0 {
		return nil
	}
	supported := make(map[string]bool, len(s.config.SupportedScopes))
	for _, sc := range s.config.SupportedScopes {
		supported[sc] = true
	}
	for _, requested := range splitScope(scope) {
		if !supported[requested] {
			return ErrInvalidScope(fmt.Sprintf("unsupported scope %q", requested))
		}
	}
	return nil
}

func (s *Server) recordExchange(ctx context.Context, clientID, result string) {
	if s.inst == nil {
		return
	}
	s.inst.Metrics().RecordCodeExchange(ctx, clientID, result)
	if result != "success" {
		s.inst.Metrics().RecordGrantFailure(ctx, result)
	}
}

func (s *Server) recordVerification(ctx context.Context, clientID string, valid bool) {
	if s.inst != nil {
		s.inst.Metrics().RecordTokenVerification(ctx, clientID, valid)
	}
}

// invalidTokenError maps codec decode failures to OAuth error responses.
func invalidTokenError(err error) *OAuthError {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrInvalidToken("bearer token expired")
	case errors.Is(err, token.ErrBadSignature):
		return ErrInvalidToken("bearer token signature invalid")
	default:
		return ErrInvalidToken("malformed bearer token")
	}
}

// buildRedirect appends code and state query parameters to a redirect URI.
func buildRedirect(redirectURI, code, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func containsURI(uris []string, uri string) bool {
	normalized := util.NormalizeURL(uri)
	for _, u := range uris {
		if util.NormalizeURL(u) == normalized {
			return true
		}
	}
	return false
}

func splitScope(scope string) []string {
	return strings.Fields(scope)
}
