// Package auth issues and checks the credentials a request can carry and
// turns them into an Identity for the handlers.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The caller signs in: email/password (POST /api/auth/login), a Google
//     ID token or profile assertion (POST /api/auth/google), or the browser
//     OAuth2 redirect (GET /auth/google/login → /auth/google/callback).
//  2. The server resolves that to a user record and issues a session JWT,
//     stored in the HttpOnly "token" cookie and also returned in the body.
//  3. On later requests the Identify middleware reads the cookie or an
//     "Authorization: Bearer" header and puts an Identity in the context.
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"<userID>","name":"<display name>","iss":"techblogs","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "techblogs"

	// SessionTTL is how long a session token stays valid.
	SessionTTL = 24 * time.Hour

	// CookieName is the cookie the session token travels in.
	CookieName = "token"
)

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: SessionTTL}, nil
}

// Claims is the session payload. Subject holds the user ID; Name is the
// display name at sign-in time, used when a caller needs a user record
// synthesized for them.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Generate issues a session token for userID valid for SessionTTL.
func (s *TokenService) Generate(userID, name string) (string, error) {
	return s.GenerateWithDuration(userID, name, s.ttl)
}

// GenerateWithDuration issues a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(userID, name string, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token.
//
// The library checks the signature, expiry and issuer. Pinning the method to
// HS256 rejects "alg: none" and algorithm-confusion tokens.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	return c, nil
}
