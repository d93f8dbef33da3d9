// Package auth verifies caller identity. The service trusts the verified uid
// and nothing else from the request.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-rooms-service/internal/domain"
)

type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens and extracts the subject uid.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify returns the caller uid and display name for a valid token, or
// ErrUnauthenticated otherwise.
func (v *JWTVerifier) Verify(tokenString string) (uid, name string, err error) {
	if tokenString == "" {
		return "", "", domain.ErrUnauthenticated
	}
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthenticated
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", domain.ErrUnauthenticated
	}
	c, ok := token.Claims.(*claims)
	if !ok || c.Subject == "" {
		return "", "", domain.ErrUnauthenticated
	}
	return c.Subject, c.Name, nil
}

// Issue signs a token for uid. Used by tests and local tooling; production
// tokens come from the identity provider.
func (v *JWTVerifier) Issue(uid, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
