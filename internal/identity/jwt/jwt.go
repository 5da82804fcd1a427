// Package jwt issues and validates HS256 access tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sis-teknik/servicedesk/internal/domain"
)

// DefaultTokenDuration matches a workshop shift plus slack.
const DefaultTokenDuration = 24 * time.Hour

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role in token")
)

// Config contains JWT configuration.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

type claims struct {
	Role string `json:"role"`
	gojwt.RegisteredClaims
}

// Authenticator signs and verifies tokens with a shared secret.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if len(cfg.SecretKey) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = DefaultTokenDuration
	}
	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: cfg.TokenDuration,
		now:      time.Now,
	}, nil
}

// Issue returns a signed token for user and its expiry.
func (a *Authenticator) Issue(user *domain.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.duration)

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims{
		Role: string(user.Role),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken implements httputil.TokenValidator. The returned user ID
// is the username, which installation assignments refer to.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	var c claims
	_, err := gojwt.ParseWithClaims(tokenString, &c, func(*gojwt.Token) (any, error) {
		return a.secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role := domain.Role(c.Role)
	if !role.IsValid() {
		return "", "", ErrInvalidRole
	}
	if c.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return c.Subject, role, nil
}
