package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionLifetime is how long an issued session token stays valid.
	DefaultSessionLifetime = time.Hour

	// DefaultCookieAge is the cookie Max-Age, in seconds, used when a token
	// carries no issued-at/expiry pair.
	DefaultCookieAge = 86400
)

// Claims are the session claims embedded in a signed token.
// They are rebuilt from the account on every issuance and never stored.
type Claims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Age returns exp - iat when both timestamps are present.
func (c *Claims) Age() (time.Duration, bool) {
	if c == nil || c.IssuedAt == nil || c.ExpiresAt == nil {
		return 0, false
	}
	return c.ExpiresAt.Sub(c.IssuedAt.Time), true
}

// CookieMaxAge returns the cookie lifetime in seconds matching the token validity,
// falling back to DefaultCookieAge.
func CookieMaxAge(claims *Claims) int {
	age, ok := claims.Age()
	if !ok {
		return DefaultCookieAge
	}
	return int(age.Seconds())
}
