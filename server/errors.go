package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/rs/zerolog/log"
)

// statusFor maps an error kind onto the HTTP status and error code reported to clients.
func statusFor(err error) (int, string) {
	switch {
	case apperrors.Is(err, apperrors.ErrUnauthenticated),
		apperrors.Is(err, apperrors.ErrInvalidSignature),
		apperrors.Is(err, apperrors.ErrTokenExpired),
		apperrors.Is(err, apperrors.ErrTokenMalformed),
		apperrors.Is(err, apperrors.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthenticated"
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case apperrors.Is(err, apperrors.ErrAccountInactive):
		return http.StatusForbidden, "account_inactive"
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case apperrors.Is(err, apperrors.ErrUnknownProvider):
		return http.StatusNotFound, "unknown_provider"
	case apperrors.Is(err, apperrors.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case apperrors.Is(err, apperrors.ErrMalformedState),
		apperrors.Is(err, apperrors.ErrProviderExchangeFailed),
		apperrors.Is(err, apperrors.ErrNoIdentityToken):
		return http.StatusBadRequest, "login_failed"
	case apperrors.Is(err, apperrors.ErrInvalidInput),
		apperrors.Is(err, apperrors.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError reports err to the client. Server-side failures are logged and
// their detail is withheld from the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	description := err.Error()
	if status == http.StatusInternalServerError {
		log.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		description = "internal error"
	}
	writeJSONError(w, code, description, status)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body of at most 1 MiB into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperrors.Kind(apperrors.ErrInvalidInput, "request body: %v", err)
	}
	return nil
}
