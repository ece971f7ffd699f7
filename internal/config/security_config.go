package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetSessionLifetime() time.Duration
	GetCookieSecure() bool
	GetRedisAddr() string
	GetAuthRateLimit() int
}

type Security struct {
	SessionSecret   string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"1h"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"false"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	AuthRateLimit   int           `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionSecret() string {
	return s.SessionSecret
}

func (s Security) GetSessionLifetime() time.Duration {
	return s.SessionLifetime
}

func (s Security) GetCookieSecure() bool {
	return s.CookieSecure
}

// GetRedisAddr returns the revoked-token cache address. Empty keeps revocations in memory.
func (s Security) GetRedisAddr() string {
	return s.RedisAddr
}

// GetAuthRateLimit is the number of auth requests allowed per client IP per minute.
func (s Security) GetAuthRateLimit() int {
	return s.AuthRateLimit
}
