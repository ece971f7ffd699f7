package oauth

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
)

// StateSeparator splits the return URL from the issuance timestamp inside the state value.
const StateSeparator = ">>>"

// EncodeState binds the caller's return URL into the value sent to the provider
// as `state`. Nothing is stored server side; the provider echoes it back.
func EncodeState(returnURL string, issuedAt time.Time) string {
	return urlEncode(returnURL + StateSeparator + strconv.FormatInt(issuedAt.Unix(), 10))
}

// DecodeState recovers the return URL and issuance time from a state value.
// The return URL is everything before the first separator. The timestamp is
// informational and is not checked against a freshness window.
// The encoded form never contains the separator, so a state that does has
// already been decoded by the query parser and is used as is.
func DecodeState(state string) (returnURL string, issuedAt time.Time, err error) {
	decoded := state
	if !strings.Contains(state, StateSeparator) {
		if decoded, err = url.PathUnescape(state); err != nil {
			return "", time.Time{}, apperrors.Kind(apperrors.ErrMalformedState, "%v", err)
		}
	}

	returnURL, rest, found := strings.Cut(decoded, StateSeparator)
	if !found {
		return "", time.Time{}, apperrors.Kind(apperrors.ErrMalformedState, "missing separator")
	}

	if secs, err := strconv.ParseInt(rest, 10, 64); err == nil {
		issuedAt = time.Unix(secs, 0)
	}
	return returnURL, issuedAt, nil
}

// urlEncode percent-encodes everything outside the RFC 3986 unreserved set.
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
