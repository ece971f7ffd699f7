package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs session claims and resolves the key that verifies them.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)

	// Keyfunc is handed to the jwt parser. It must refuse tokens signed with
	// any method other than Method.
	Keyfunc(token *jwt.Token) (any, error)

	Method() jwt.SigningMethod
}

// HMACSigner signs with HS256 using the shared session secret.
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{key: []byte(secret)}
}

func (s *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(s.Method(), claims).SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "[HMACSigner Sign]")
	}
	return signed, nil
}

func (s *HMACSigner) Keyfunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != s.Method().Alg() {
		return nil, errors.Errorf("[HMACSigner Keyfunc] unexpected signing method %q", token.Method.Alg())
	}
	return s.key, nil
}

func (s *HMACSigner) Method() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
