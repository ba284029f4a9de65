// Package auth validates bearer tokens minted by the clinic's identity
// service. Login, logout and credential management live there, not here.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type OperatorContext struct {
	OperatorID string
	Name       string
	Role       string
}

type Claims struct {
	OperatorID string `json:"sub"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func ParseToken(secret, token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateToken signs operator claims with the shared secret. Used by the
// identity service's dev mode and by tests.
func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	claims.IssuedAt = jwt.NewNumericDate(time.Now())
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
