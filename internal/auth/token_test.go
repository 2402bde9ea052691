package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyExtractsIdentity(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	raw := signToken(t, "test-secret", jwt.MapClaims{
		"sub":  "u1",
		"name": "Alice",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "Alice", identity.Name)
}

func TestVerifyAllowsMissingName(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	raw := signToken(t, "test-secret", jwt.MapClaims{"sub": "u1"})

	identity, err := verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Empty(t, identity.Name)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	raw := signToken(t, "other-secret", jwt.MapClaims{"sub": "u1"})

	_, err := verifier.Verify(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	raw := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.Verify(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	raw := signToken(t, "test-secret", jwt.MapClaims{"name": "Alice"})

	_, err := verifier.Verify(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	_, err := verifier.Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
