// Package token implements the signed bearer token format. Bearer tokens
// carry the ledger token id and grant details as signed claims so holders
// can be checked locally before consulting the ledger.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum signing secret size in bytes.
const MinSecretLength = 32

var (
	// ErrSecretTooShort is returned when the signing secret is shorter than MinSecretLength.
	ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)

	// ErrMalformedToken is returned when a token cannot be parsed at all.
	ErrMalformedToken = errors.New("malformed bearer token")

	// ErrBadSignature is returned when a token's signature does not verify.
	ErrBadSignature = errors.New("bearer token signature invalid")

	// ErrExpired is returned when a token's own expiry has passed.
	ErrExpired = errors.New("bearer token expired")
)

// Claims are the signed contents of a bearer token.
type Claims struct {
	TokenID  uint64 `json:"tid"`
	ClientID string `json:"cid"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Codec issues and decodes signed bearer tokens. The bearer expiry is
// independent of the ledger record's expiry and is bounded by it through
// configuration, never here.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewCodec creates a codec with the given signing secret and bearer TTL.
func NewCodec(secret []byte, issuer string, ttl time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("bearer TTL must be positive")
	}

	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)

	return &Codec{
		secret: secretCopy,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetTimeFunc overrides the clock, for testing.
func (c *Codec) SetTimeFunc(now func() time.Time) {
	c.now = now
}

// TTL returns the configured bearer token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a bearer token binding subject, client, scope, and ledger
// token id. It returns the compact token and its expiry time.
func (c *Codec) Issue(subject, clientID, scope string, tokenID uint64) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.ttl)

	claims := &Claims{
		TokenID:  tokenID,
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign bearer token: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies a bearer token's signature and expiry and returns its
// claims. Decode never consults the ledger; callers needing live validity
// must check the ledger record separately.
func (c *Codec) Decode(bearer string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(bearer, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			// The parser JSON-decodes claims before checking the MAC, so a
			// payload flipped in transit reports as malformed. Check the MAC
			// ourselves to tell tampering apart from a broken token.
			if c.signatureBroken(bearer) {
				return nil, ErrBadSignature
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	if claims.Subject == "" || claims.TokenID == 0 {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformedToken)
	}
	return claims, nil
}

// signatureBroken reports whether a structurally complete compact token
// carries a MAC that does not verify over its header and payload. Tokens
// that are not even three segments are not signature failures.
func (c *Codec) signatureBroken(bearer string) bool {
	parts := strings.Split(bearer, ".")
	if len(parts) != 3 {
		return false
	}
	sig, err := jwt.NewParser().DecodeSegment(parts[2])
	if err != nil {
		return false
	}
	return jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret) != nil
}
