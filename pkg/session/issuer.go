// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package session issues and validates the bearer tokens handed out after a
// successful passkey authentication. Tokens are stateless HS256 JWTs; there
// is no server-side session store to revoke or expire.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-moneta/pkg/passkey"
)

// Errors returned by token validation.
var (
	// ErrInvalidToken is returned when a token fails signature or claim checks.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("session token expired")
)

// Claims are the claims carried by an issued session token.
type Claims struct {
	// Handle is the base64url-encoded user handle of the identity.
	Handle string `json:"uid"`
	jwt.RegisteredClaims
}

// Email returns the authenticated identity's email address.
func (c *Claims) Email() string {
	return c.Subject
}

// Config holds session issuer configuration.
type Config struct {
	// Secret is the HMAC signing secret (required, at least 32 bytes).
	Secret []byte `json:"-" yaml:"-" mapstructure:"-"`

	// Issuer is the JWT issuer claim.
	Issuer string `json:"issuer" yaml:"issuer" mapstructure:"issuer"`

	// Audience is the JWT audience claim.
	Audience string `json:"audience" yaml:"audience" mapstructure:"audience"`

	// TTL is how long issued tokens are valid.
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// Issuer creates and validates session tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates a session token issuer.
func NewIssuer(cfg *Config) (*Issuer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes")
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "go-moneta"
	}
	audience := cfg.Audience
	if audience == "" {
		audience = "go-moneta"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &Issuer{
		secret:   cfg.Secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue creates a signed session token for the authenticated identity.
// The subject is the email address and the uid claim carries the opaque
// user handle.
func (i *Issuer) Issue(ctx context.Context, identity *passkey.Identity) (string, error) {
	if identity == nil {
		return "", fmt.Errorf("identity is required")
	}

	now := i.now()
	claims := Claims{
		Handle: base64.RawURLEncoding.EncodeToString(identity.Handle),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   identity.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate verifies a session token and returns its claims.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
