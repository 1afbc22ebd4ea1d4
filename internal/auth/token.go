// Package auth issues short-lived bearer tokens carrying the caller's ERP
// identity, so downstream tools invoked by the assistant backend can call
// back into the ERP on the user's behalf.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coreerp/assistant-gateway/internal/domain"
)

const defaultTTL = 1 * time.Hour

// Issuer signs HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the default one hour token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock overrides the time source. Tests use this for deterministic
// expiry claims.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates a token issuer signing with secret.
func NewIssuer(secret, issuer string, opts ...Option) *Issuer {
	i := &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Claims is the token body: registered claims plus the ERP identity fields
// downstream callers need.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// IssueToken mints a signed token for the request's caller.
func (i *Issuer) IssueToken(_ context.Context, rc *domain.RequestContext) (string, error) {
	if rc == nil {
		return "", domain.ErrValidation("request context is required to issue a token")
	}
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   rc.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role:         rc.Role,
		Organization: rc.Organization,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses a token previously produced by IssueToken and returns its
// claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}
