// Package session holds the interactive user's bearer token and identity.
//
// A Session always carries a token when it carries a user; both are written
// and cleared together. Persistence goes through a Store, and expiry is the
// store's concern: an expired record loads as no session at all.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is how long a session persists after login
const TTL = 24 * time.Hour

// ErrEmptyToken is returned when establishing a session without a token
var ErrEmptyToken = errors.New("session: token is required")

// User is the minimal identity returned by the login exchange
type User struct {
	ID   int    `json:"id"`
	Name string `json:"nama"`
}

// Session is the persisted login state
type Session struct {
	Token     string    `json:"token"`
	User      *User     `json:"user,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession creates a session expiring TTL after now. When token is a JWT with
// an earlier exp claim, that claim wins. The token is never verified here.
func NewSession(token string, user User, now time.Time) (*Session, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	expires := now.Add(TTL)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}

	return &Session{
		Token:     token,
		User:      &user,
		ExpiresAt: expires,
	}, nil
}

// Valid reports whether s holds a token that has not expired
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && s.User != nil && now.Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return &c
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
