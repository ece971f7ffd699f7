package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// BeginLoginHandler redirects the browser to the provider's consent page.
// The optional redirect query parameter is where the user lands after login.
func (s *Server) BeginLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnURL := s.safeReturnURL(r.URL.Query().Get("redirect"))

		authURL, err := s.auth.BeginLogin(r.PathValue("provider"), returnURL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	}
}

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		if errorParam := r.FormValue("error"); errorParam != "" {
			writeJSONError(w, "login_failed", errorParam+": "+r.FormValue("error_description"), http.StatusBadRequest)
			return
		}

		provider := r.PathValue("provider")
		session, err := s.auth.CompleteLogin(r.Context(), provider, r.FormValue("state"), r.FormValue("code"))
		if err != nil {
			log.Warn().Err(err).Str("provider", provider).Msg("login callback failed")
			writeError(w, r, err)
			return
		}

		s.SetSessionCookie(w, r, session.Token, session.Claims)
		http.Redirect(w, r, s.safeReturnURL(session.ReturnURL), http.StatusTemporaryRedirect)
	}
}

// LogoutHandler revokes the current session, if any, clears the cookie and
// sends the browser home.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if signed := sessionToken(r); signed != "" {
			if claims, err := s.auth.Authenticate(r.Context(), signed); err == nil {
				if err := s.auth.Logout(r.Context(), claims); err != nil {
					log.Err(err).Str("account", claims.Subject).Msg("failed to revoke session")
				}
			}
		}
		s.ClearSessionCookie(w, r)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	}
}
