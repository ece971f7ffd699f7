package errors

import (
	"errors"
	"fmt"
)

// Common error kinds shared by the bridge, the codec and the collection engine
var (
	// Session errors
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("malformed token")
	ErrTokenRevoked     = errors.New("token revoked")

	// Identity provider errors
	ErrProviderExchangeFailed = errors.New("provider exchange failed")
	ErrMalformedState         = errors.New("malformed oauth state")
	ErrNoIdentityToken        = errors.New("no identity token")
	ErrUnknownProvider        = errors.New("unknown provider")

	// Account errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")

	// Store errors
	ErrNotFound     = errors.New("not found")
	ErrStoreFailure = errors.New("store failure")
	ErrInvalidQuery = errors.New("invalid query")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Kind attaches a sentinel kind to a detailed error so that callers can match
// the kind with Is while the message keeps the detail.
func Kind(kind error, format string, args ...interface{}) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.msg
}

func (e *kindError) Unwrap() error {
	return e.kind
}
