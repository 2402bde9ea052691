// Package auth validates bearer tokens issued by the external identity
// provider. The service never mints tokens itself.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	UserID string
	Name   string
}

// Verifier validates HS256 tokens against the shared provider secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token and returns the caller identity.
// The subject claim carries the provider user id; "name" carries the display
// name used for message denormalization.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{UserID: sub}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	return identity, nil
}
