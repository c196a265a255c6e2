// Package auth implements the authentication core: password verification,
// token issue/validate, the per-request authentication filter, and route
// authorization.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed covers structurally invalid tokens and bad signatures.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired means the signature checked out but the token is past expiry.
	ErrTokenExpired = errors.New("token expired")
)

// MinSigningKeyBytes is the minimum decoded signing key length. HMAC-SHA256
// needs at least a 256-bit key to carry its full strength.
const MinSigningKeyBytes = 32

// Claims are the validated contents of a token.
type Claims struct {
	Username  string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and validates HMAC-SHA256 signed bearer tokens. It is
// stateless and safe for concurrent use.
type TokenCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenCodec creates a codec with the given signing key and token
// lifetime. A short key or non-positive TTL is a configuration error.
func NewTokenCodec(key []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(key) < MinSigningKeyBytes {
		return nil, fmt.Errorf("signing key too short: %d bytes, need at least %d", len(key), MinSigningKeyBytes)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenCodec{key: key, ttl: ttl, now: time.Now}, nil
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for the user. The expiry is always
// issued-at plus the configured TTL.
func (c *TokenCodec) Issue(username string, role Role) (string, error) {
	now := c.now().UTC()
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token, verifies its signature, and checks expiry.
// Returns ErrTokenMalformed or ErrTokenExpired, never both conflated.
// Expiry uses an exclusive upper bound: a token checked exactly at its
// exp instant is already expired.
func (c *TokenCodec) Validate(tokenString string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return c.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Reject non-canonical base64 segments. Without this, mutating the
		// spare trailing bits of the signature encoding yields a different
		// token string that still decodes to the same signature bytes.
		jwt.WithStrictDecoding(),
		// Expiry is checked below with the exclusive bound; the library's
		// validator would pass a token at the exact exp instant.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	if !ValidRole(claims.Role) {
		return nil, ErrTokenMalformed
	}
	if !c.now().UTC().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return &Claims{
		Username:  claims.Subject,
		Role:      Role(claims.Role),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}
