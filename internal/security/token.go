// Package security verifies bearer tokens issued by the auth provider.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
)

// Token validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// Claims are the access token claims the service reads.
type Claims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserMetadata is the profile blob attached by the auth provider.
type UserMetadata struct {
	FullName string `json:"full_name"`
	Name     string `json:"name"`
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewVerifier creates a Verifier. An empty audience disables the aud check.
func NewVerifier(secret, audience string, leeway time.Duration) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		leeway:   leeway,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify parses the token and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (account.Identity, error) {
	if tokenString == "" {
		return account.Identity{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return account.Identity{}, ErrExpiredToken
		}
		return account.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return account.Identity{}, ErrInvalidToken
	}

	name := claims.UserMetadata.FullName
	if name == "" {
		name = claims.UserMetadata.Name
	}
	return account.Identity{
		AuthUserID: claims.Subject,
		Email:      claims.Email,
		Name:       name,
	}, nil
}

// Sign issues an HS256 token for claims. Used by local tooling and tests.
func Sign(secret string, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
