package jwt

import (
	"context"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{SecretKey: testSecret, TokenDuration: time.Hour})
	require.NoError(t, err)
	return a
}

func TestNewAuthenticator_ShortSecret(t *testing.T) {
	_, err := NewAuthenticator(Config{SecretKey: "short"})
	assert.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	a := newTestAuthenticator(t)

	token, expiresAt, err := a.Issue(&domain.User{Username: "ayse", Role: domain.RoleTechnician})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, role, err := a.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ayse", userID)
	assert.Equal(t, domain.RoleTechnician, role)
}

func TestValidateToken_Expired(t *testing.T) {
	a := newTestAuthenticator(t)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := a.Issue(&domain.User{Username: "ayse", Role: domain.RoleAdmin})
	require.NoError(t, err)

	a.now = time.Now
	_, _, err = a.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	a := newTestAuthenticator(t)
	other, err := NewAuthenticator(Config{SecretKey: strings.Repeat("z", 40)})
	require.NoError(t, err)

	token, _, err := other.Issue(&domain.User{Username: "ayse", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, _, err = a.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_UnknownRole(t *testing.T) {
	a := newTestAuthenticator(t)

	token, _, err := a.Issue(&domain.User{Username: "ayse", Role: "superuser"})
	require.NoError(t, err)

	_, _, err = a.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestValidateToken_RejectsNoneAlg(t *testing.T) {
	a := newTestAuthenticator(t)

	token := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims{
		Role: string(domain.RoleAdmin),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "mallory",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = a.ValidateToken(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
