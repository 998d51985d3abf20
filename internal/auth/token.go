package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	svcErr "github.com/purr4furr/purr-backend/internal/errors"
)

// TokenManager issues and verifies the signed bearer tokens used by the HTTP
// and websocket layers. Tokens are HS256 JWTs carrying the user id as
// subject.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a token for the user, valid for the configured TTL.
func (t *TokenManager) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses the token and returns the user id it was issued for.
// Expired, malformed or foreign-signed tokens all come back as
// ErrUnauthenticated.
func (t *TokenManager) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", svcErr.ErrUnauthenticated
	}
	return claims.Subject, nil
}
