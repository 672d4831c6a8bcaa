// Package rpc provides a ledger gateway backed by a remote bridge service.
// The bridge exposes the token contract over a JSON HTTP API; this client
// maps its responses onto the ledger.Gateway contract.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tokengate/nft-oauth/ledger"
)

// Compile-time check that Client implements the ledger.Gateway interface.
var _ ledger.Gateway = (*Client)(nil)

// DefaultRequestTimeout is applied when the caller's context has no deadline.
const DefaultRequestTimeout = 30 * time.Second

// Config holds bridge client configuration.
type Config struct {
	// BaseURL is the bridge service base URL, e.g. "https://bridge.internal:8545".
	BaseURL string

	// APIKey is an optional bearer credential for the bridge.
	APIKey string

	// Operator is the identity used for operator-initiated revocations.
	// It is the requester sent to the bridge when Revoke gets an empty one.
	Operator string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for bridge calls (default: 30s).
	RequestTimeout time.Duration
}

// Client calls a remote ledger bridge over HTTP.
type Client struct {
	baseURL        string
	apiKey         string
	operator       string
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewClient creates a new bridge client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		operator:       cfg.Operator,
		httpClient:     httpClient,
		requestTimeout: timeout,
		logger:         slog.Default(),
	}, nil
}

// SetLogger sets a custom logger
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Bridge wire types. Field names follow the bridge API, not this module.
type mintRequest struct {
	Subject     string `json:"subject"`
	ClientID    string `json:"clientId"`
	Scope       string `json:"scope"`
	ExpiresAt   int64  `json:"expiresAt"`
	MetadataURI string `json:"metadataUri,omitempty"`
}

type mintResponse struct {
	TokenID uint64 `json:"tokenId"`
	TxHash  string `json:"txHash"`
}

type validityResponse struct {
	Valid bool `json:"valid"`
}

type recordResponse struct {
	TokenID     uint64 `json:"tokenId"`
	Subject     string `json:"subject"`
	ClientID    string `json:"clientId"`
	Scope       string `json:"scope"`
	ExpiresAt   int64  `json:"expiresAt"`
	Revoked     bool   `json:"revoked"`
	MetadataURI string `json:"metadataUri"`
}

type revokeRequest struct {
	Requester string `json:"requester"`
}

type userTokensResponse struct {
	Tokens []uint64 `json:"tokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Mint asks the bridge to mint a token record on the contract
func (c *Client) Mint(ctx context.Context, req ledger.MintRequest) (uint64, error) {
	body := mintRequest{
		Subject:     req.Subject,
		ClientID:    req.ClientID,
		Scope:       req.Scope,
		ExpiresAt:   req.ExpiresAt.Unix(),
		MetadataURI: req.MetadataURI,
	}

	var resp mintResponse
	if err := c.do(ctx, http.MethodPost, "/v1/tokens", body, &resp); err != nil {
		return 0, err
	}

	c.logger.Info("Bridge minted token record",
		"token_id", resp.TokenID,
		"client_id", req.ClientID,
		"tx_hash", resp.TxHash)

	return resp.TokenID, nil
}

// IsValid queries the contract's validity view through the bridge
func (c *Client) IsValid(ctx context.Context, tokenID uint64) (bool, error) {
	var resp validityResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/tokens/%d/valid", tokenID), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Record fetches the token record for an id
func (c *Client) Record(ctx context.Context, tokenID uint64) (*ledger.TokenRecord, error) {
	var resp recordResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/tokens/%d", tokenID), nil, &resp); err != nil {
		return nil, err
	}

	return &ledger.TokenRecord{
		TokenID:     resp.TokenID,
		Subject:     resp.Subject,
		ClientID:    resp.ClientID,
		Scope:       resp.Scope,
		ExpiresAt:   time.Unix(resp.ExpiresAt, 0),
		Revoked:     resp.Revoked,
		MetadataURI: resp.MetadataURI,
	}, nil
}

// Revoke asks the bridge to revoke a record on behalf of a requester.
// An empty requester revokes under the configured operator identity.
func (c *Client) Revoke(ctx context.Context, tokenID uint64, requester string) error {
	if requester == "" {
		requester = c.operator
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/tokens/%d/revoke", tokenID), revokeRequest{Requester: requester}, nil)
}

// ListUserTokens returns all token ids minted for a subject
func (c *Client) ListUserTokens(ctx context.Context, subject string) ([]uint64, error) {
	var resp userTokensResponse
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(subject)+"/tokens", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens == nil {
		return []uint64{}, nil
	}
	return resp.Tokens, nil
}

// HealthCheck probes bridge connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

// ensureContextTimeout ensures the context has a deadline, adding one if needed.
func (c *Client) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// do performs a bridge request and decodes the JSON response into out.
// Transport failures and 5xx responses map to ledger.ErrUnavailable so
// callers can treat them as gateway outages.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ledger.ErrUnavailable, err)
	}
	return nil
}

// statusError maps bridge HTTP status codes onto ledger sentinel errors
func (c *Client) statusError(resp *http.Response) error {
	var bridgeErr errorResponse
	detail := ""
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&bridgeErr); err == nil && bridgeErr.Error != "" {
		detail = ": " + bridgeErr.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w%s", ledger.ErrNotFound, detail)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w%s", ledger.ErrUnauthorized, detail)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w%s", ledger.ErrInvalidExpiry, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: bridge returned status %d%s", ledger.ErrUnavailable, resp.StatusCode, detail)
	default:
		return fmt.Errorf("bridge returned unexpected status %d%s", resp.StatusCode, detail)
	}
}
