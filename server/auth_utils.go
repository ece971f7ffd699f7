package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-bridge/token"
)

// sessionCookieName is the cookie carrying the signed session token.
const sessionCookieName = "token"

func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, signed string, claims *token.Claims) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure() || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   token.CookieMaxAge(claims),
	})
}

// ClearSessionCookie expires the session cookie (Max-Age=0 on the wire).
func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure() || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionToken returns the token from the session cookie, falling back to an
// Authorization: Bearer header.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// safeReturnURL keeps post-login redirects on allow-listed origins or relative paths.
func (s *Server) safeReturnURL(returnURL string) string {
	if s.config.GetAllowedOrigins().IsAllowedReturnURL(returnURL) {
		return returnURL
	}
	return "/"
}
