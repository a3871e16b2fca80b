// Package session defines the logged-in session and its credential.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// Credential is the opaque bearer token presented on every request.
type Credential string

// String returns the raw token.
func (c Credential) String() string {
	return string(c)
}

// IsZero reports whether the credential is empty.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// claims parses the token payload without verifying the signature. The server
// remains the authority; this is only used for client-side decisions such as
// warning about an expired token.
func (c Credential) claims() (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(c), claims); err != nil {
		return nil, false
	}
	return claims, true
}

// ExpiresAt returns the exp claim, if the token carries one.
func (c Credential) ExpiresAt() (time.Time, bool) {
	claims, ok := c.claims()
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token's exp claim is at or before now. Tokens
// without an exp claim never expire client-side.
func (c Credential) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return !exp.After(now)
}

// UserID returns the user_id claim (falling back to sub), if present.
func (c Credential) UserID() (int64, bool) {
	claims, ok := c.claims()
	if !ok {
		return 0, false
	}

	for _, key := range []string{"user_id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			return int64(v), true
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// Session is the logged-in identity used for all chat requests.
type Session struct {
	Credential Credential     `json:"token"`
	User       messaging.User `json:"user"`
	SavedAt    time.Time      `json:"saved_at"`
}

// New builds a session from a token. When the token carries a user id claim
// it takes precedence over userID.
func New(token string, userID int64, username string) (Session, error) {
	cred := Credential(strings.TrimSpace(token))
	if cred.IsZero() {
		return Session{}, fmt.Errorf("token is required")
	}

	if id, ok := cred.UserID(); ok {
		userID = id
	}

	return Session{
		Credential: cred,
		User:       messaging.User{ID: userID, Username: username},
		SavedAt:    time.Now(),
	}, nil
}
