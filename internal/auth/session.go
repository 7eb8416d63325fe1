// Package auth — session and password-reset tokens.
//
// SESSION MODEL:
// A login issues a signed JWT carrying the user's ID, stored in an HttpOnly
// cookie named "session". The server keeps no session table — the signature
// is the proof, so any instance holding the secret can validate a request
// without a database lookup. Logout just clears the cookie.
//
// The same TokenService also mints short-lived password-reset tokens. Those
// carry a "purpose" claim so a session token can never be replayed as a
// reset token or vice versa.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer       = "qr-genius"
	purposeReset = "password_reset"

	// ResetTokenTTL bounds how long a password-reset link stays usable.
	ResetTokenTTL = time.Hour
)

// SessionCookieName is the cookie the session JWT travels in.
const SessionCookieName = "session"

// TokenService signs and validates the JWTs used for sessions and password
// resets. The same HMAC secret is used for both operations; it should be at
// least 32 bytes of random data in production.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
}

// NewTokenService creates a TokenService with the given secret and session
// lifetime. A zero or negative ttl falls back to 7 days, matching the
// session lifetime of the product.
func NewTokenService(secret string, sessionTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), sessionTTL: sessionTTL}, nil
}

// SessionTTL returns the configured session lifetime, so the handler can
// set a matching cookie Max-Age.
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// claims is the JWT payload. The user ID goes in the standard "sub" claim;
// Purpose is empty for session tokens and purposeReset for reset tokens.
type claims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

func (s *TokenService) generate(userID int64, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
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

// GenerateSession creates a signed session token for the given user.
func (s *TokenService) GenerateSession(userID int64) (string, error) {
	return s.generate(userID, "", s.sessionTTL)
}

// GenerateReset creates a one-hour password-reset token for the given user.
func (s *TokenService) GenerateReset(userID int64) (string, error) {
	return s.generate(userID, purposeReset, ResetTokenTTL)
}

func (s *TokenService) validate(tokenStr, purpose string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC — prevents
			// algorithm-confusion attacks.
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
			return 0, fmt.Errorf("auth: token expired")
		}
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid token claims")
	}
	if c.Purpose != purpose {
		return 0, fmt.Errorf("auth: token purpose mismatch")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: token has an invalid subject")
	}

	return userID, nil
}

// ValidateSession parses and verifies a session token, returning the user
// ID it encodes. Reset tokens are rejected here.
func (s *TokenService) ValidateSession(tokenStr string) (int64, error) {
	return s.validate(tokenStr, "")
}

// ValidateReset parses and verifies a password-reset token, returning the
// user ID it encodes. Session tokens are rejected here.
func (s *TokenService) ValidateReset(tokenStr string) (int64, error) {
	return s.validate(tokenStr, purposeReset)
}
