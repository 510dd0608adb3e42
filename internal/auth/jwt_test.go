package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-chars!!"

func signToken(t *testing.T, secret string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "clinician-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifier_ValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	claims, err := v.ValidateToken(signToken(t, testSecret, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "clinician-1", claims.Subject)
}

func TestVerifier_WrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.ValidateToken(signToken(t, "another-secret-that-is-32-chars-long!!", time.Hour))
	assert.Error(t, err)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.ValidateToken(signToken(t, testSecret, -time.Minute))
	assert.Error(t, err)
}

func TestVerifier_Garbage(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.ValidateToken("not.a.token")
	assert.Error(t, err)
}
