// Package auth issues and validates the JWT access tokens used by both the
// HTTP API and the websocket gateway.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 7 * 24 * time.Hour

// Claims carried in the access token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth signs and parses access tokens with a process-wide HMAC secret.
type Auth struct {
	secret []byte
}

func New(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Sign issues a token for the user.
func (a *Auth) Sign(userID, username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "murasel-backend",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	})
	return token.SignedString(a.secret)
}

// Parse validates a token and returns the user id and username.
func (a *Auth) Parse(tokenString string) (string, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", "", errors.New("invalid token")
	}
	return claims.UserID, claims.Username, nil
}
