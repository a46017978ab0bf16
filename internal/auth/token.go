package auth

import (
	"errors"
	"time"

	"primetrade/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

var errNoSecret = errors.New("JWT_SECRET is not set")

// Tokens signs and parses bearer tokens whose subject is the user id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	if len(t.secret) == 0 {
		return "", errNoSecret
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Subject validates tokenStr and returns the user id it was issued for.
func (t *Tokens) Subject(tokenStr string) (string, error) {
	if len(t.secret) == 0 {
		return "", apperr.Unauthorized("Invalid or expired token")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return "", apperr.Unauthorized("Invalid or expired token")
	}
	if claims.Subject == "" {
		return "", apperr.Unauthorized("Invalid token subject")
	}
	return claims.Subject, nil
}
