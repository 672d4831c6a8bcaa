package oauth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tokengate/nft-oauth/token"
)

// Config holds the token service configuration
// Structured using composition for better organization and maintainability
type Config struct {
	// Issuer is the issuer identifier embedded in bearer tokens.
	// This should be the base URL of the service.
	Issuer string

	// SigningSecret is the symmetric secret used to sign bearer tokens.
	// Must be at least 32 bytes.
	SigningSecret []byte

	// Operator is the ledger operator address. The operator may revoke any
	// token record regardless of subject.
	Operator string

	// SupportedScopes are the scopes clients may request. Empty means any
	// scope string is accepted.
	SupportedScopes []string

	// Authorization code and token lifetimes
	Lifetimes LifetimeConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// CleanupInterval is how often expired authorization codes are removed
	// Default: 1 minute
	CleanupInterval time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// LifetimeConfig holds the TTLs governing codes and tokens
type LifetimeConfig struct {
	// AuthorizationCodeTTL is how long an issued code may be exchanged.
	// Default: 10 minutes.
	AuthorizationCodeTTL time.Duration

	// LedgerTokenTTL is the lifetime written into minted ledger records.
	// Default: 1 hour.
	LedgerTokenTTL time.Duration

	// BearerTokenTTL is the lifetime of issued bearer tokens. Must not
	// exceed LedgerTokenTTL, otherwise a bearer could outlive the record
	// that backs it. Default: equal to LedgerTokenTTL.
	BearerTokenTTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// CleanupInterval is how often to cleanup inactive rate limiters.
	CleanupInterval time.Duration
}

// SecurityConfig holds security settings (secure by default)
type SecurityConfig struct {
	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of the
	// service, used to pick the client IP out of X-Forwarded-For.
	TrustedProxyCount int

	// AllowPrivateRedirectURIs permits redirect URIs whose host resolves
	// to a loopback or private address. Off by default to prevent SSRF
	// via the echoed redirect.
	AllowPrivateRedirectURIs bool

	// EnableAuditLogging enables security audit logging.
	// Logs grant events, token operations, and violations (sensitive data hashed).
	EnableAuditLogging bool
}

// Default lifetimes applied by Validate when fields are zero.
const (
	DefaultAuthorizationCodeTTL = 10 * time.Minute
	DefaultLedgerTokenTTL       = time.Hour
	DefaultCleanupInterval      = time.Minute
)

// Validate checks the configuration and fills in secure defaults.
// It returns an error for settings that cannot be defaulted safely.
func (c *Config) Validate() error {
	if len(c.SigningSecret) < token.MinSecretLength {
		return fmt.Errorf("signing secret must be at least %d bytes, got %d",
			token.MinSecretLength, len(c.SigningSecret))
	}

	if c.Lifetimes.AuthorizationCodeTTL == 0 {
		c.Lifetimes.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if c.Lifetimes.LedgerTokenTTL == 0 {
		c.Lifetimes.LedgerTokenTTL = DefaultLedgerTokenTTL
	}
	if c.Lifetimes.BearerTokenTTL == 0 {
		c.Lifetimes.BearerTokenTTL = c.Lifetimes.LedgerTokenTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}

	if c.Lifetimes.AuthorizationCodeTTL < 0 {
		return fmt.Errorf("authorization code TTL must be positive")
	}
	if c.Lifetimes.LedgerTokenTTL < 0 || c.Lifetimes.BearerTokenTTL < 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	// A bearer token must never outlive the ledger record backing it.
	if c.Lifetimes.BearerTokenTTL > c.Lifetimes.LedgerTokenTTL {
		return fmt.Errorf("bearer token TTL (%s) must not exceed ledger token TTL (%s)",
			c.Lifetimes.BearerTokenTTL, c.Lifetimes.LedgerTokenTTL)
	}

	if c.RateLimit.Rate > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.Rate * 2
	}

	return nil
}

// configEnv holds raw env values for the service configuration.
type configEnv struct {
	Issuer               string        `env:"NFT_OAUTH_ISSUER"`
	SigningSecret        string        `env:"NFT_OAUTH_SIGNING_SECRET"`
	Operator             string        `env:"NFT_OAUTH_OPERATOR"`
	SupportedScopes      []string      `env:"NFT_OAUTH_SUPPORTED_SCOPES"       envSeparator:","`
	AuthorizationCodeTTL time.Duration `env:"NFT_OAUTH_CODE_TTL"               envDefault:"10m"`
	LedgerTokenTTL       time.Duration `env:"NFT_OAUTH_LEDGER_TOKEN_TTL"       envDefault:"1h"`
	BearerTokenTTL       time.Duration `env:"NFT_OAUTH_BEARER_TOKEN_TTL"`
	RateLimitRate        int           `env:"NFT_OAUTH_RATE_LIMIT_RPS"`
	RateLimitBurst       int           `env:"NFT_OAUTH_RATE_LIMIT_BURST"`
	TrustProxy           bool          `env:"NFT_OAUTH_TRUST_PROXY"`
	TrustedProxyCount    int           `env:"NFT_OAUTH_TRUSTED_PROXY_COUNT"    envDefault:"1"`
	AllowPrivateRedirect bool          `env:"NFT_OAUTH_ALLOW_PRIVATE_REDIRECTS"`
	EnableAuditLogging   bool          `env:"NFT_OAUTH_AUDIT_LOGGING"          envDefault:"true"`
	CleanupInterval      time.Duration `env:"NFT_OAUTH_CLEANUP_INTERVAL"       envDefault:"1m"`
}

// LoadConfigFromEnv loads the service configuration from environment
// variables. The returned config has been validated.
func LoadConfigFromEnv() (*Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg := &Config{
		Issuer:          raw.Issuer,
		SigningSecret:   []byte(raw.SigningSecret),
		Operator:        raw.Operator,
		SupportedScopes: raw.SupportedScopes,
		Lifetimes: LifetimeConfig{
			AuthorizationCodeTTL: raw.AuthorizationCodeTTL,
			LedgerTokenTTL:       raw.LedgerTokenTTL,
			BearerTokenTTL:       raw.BearerTokenTTL,
		},
		RateLimit: RateLimitConfig{
			Rate:  raw.RateLimitRate,
			Burst: raw.RateLimitBurst,
		},
		Security: SecurityConfig{
			TrustProxy:               raw.TrustProxy,
			TrustedProxyCount:        raw.TrustedProxyCount,
			AllowPrivateRedirectURIs: raw.AllowPrivateRedirect,
			EnableAuditLogging:       raw.EnableAuditLogging,
		},
		CleanupInterval: raw.CleanupInterval,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
