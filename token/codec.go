package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/pkg/errors"
)

// Codec issues and verifies compact HS256 session tokens.
// It holds no per-request state and is safe for concurrent use.
type Codec struct {
	signer   Signer
	lifetime time.Duration
	revoked  RevokedTokenCache
	nowFunc  func() time.Time
}

type CodecOption func(*Codec)

// WithLifetime overrides DefaultSessionLifetime.
func WithLifetime(lifetime time.Duration) CodecOption {
	return func(c *Codec) {
		c.lifetime = lifetime
	}
}

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// WithRevokedTokenCache enables server-side revocation checks in VerifyContext.
func WithRevokedTokenCache(cache RevokedTokenCache) CodecOption {
	return func(c *Codec) {
		c.revoked = cache
	}
}

func NewCodec(secret string, options ...CodecOption) *Codec {
	c := &Codec{
		signer: NewHMACSigner(secret),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.lifetime <= 0 {
		c.lifetime = DefaultSessionLifetime
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// Issue stamps iat, exp and a fresh jti onto a copy of claims and signs it.
// The stamped claims are returned alongside the token so callers can size cookies.
func (c *Codec) Issue(claims Claims) (string, *Claims, error) {
	now := c.nowFunc().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.lifetime))
	claims.ID = uuid.New().String()

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Codec Issue]")
	}
	return signed, &claims, nil
}

// Verify checks the token structure, expiry and signature and returns its claims.
// Expiry is checked first so an expired token always reports ErrTokenExpired.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperrors.ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signer.Method().Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
	)

	unverified := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, unverified); err != nil {
		return nil, errors.Wrap(apperrors.ErrTokenMalformed, err.Error())
	}
	if unverified.ExpiresAt != nil && !c.nowFunc().Before(unverified.ExpiresAt.Time) {
		return nil, apperrors.ErrTokenExpired
	}

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, c.signer.Keyfunc)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidSignature
	}
	return claims, nil
}

// VerifyContext is Verify plus a revoked-token lookup when a cache is configured.
func (c *Codec) VerifyContext(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if c.revoked == nil || claims.ID == "" {
		return claims, nil
	}
	revoked, err := c.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Codec VerifyContext] revocation lookup")
	}
	if revoked {
		return nil, apperrors.ErrTokenRevoked
	}
	return claims, nil
}

// Revoke marks the token identified by claims as unusable until it expires.
func (c *Codec) Revoke(ctx context.Context, claims *Claims) error {
	if c.revoked == nil || claims == nil || claims.ID == "" {
		return nil
	}
	exp := c.nowFunc().Add(c.lifetime)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return c.revoked.Add(ctx, claims.ID, exp)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.Wrap(apperrors.ErrInvalidSignature, err.Error())
	default:
		return errors.Wrap(apperrors.ErrTokenMalformed, err.Error())
	}
}
