package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-bridge/auth"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/users"
)

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse is returned by the email endpoints alongside the cookie so
// non-browser clients can use the Bearer header instead.
type sessionResponse struct {
	Token   string         `json:"token"`
	Account *users.Account `json:"account"`
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SignupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		session, err := s.auth.SignUp(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.writeSession(w, r, http.StatusCreated, session)
	}
}

func (s *Server) SigninHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signinRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		session, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.writeSession(w, r, http.StatusOK, session)
	}
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, session *auth.Session) {
	s.SetSessionCookie(w, r, session.Token, session.Claims)
	writeJSON(w, status, sessionResponse{Token: session.Token, Account: session.Account})
}

func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, r, apperrors.ErrUnauthenticated)
			return
		}
		account, err := s.auth.CurrentAccount(r.Context(), claims)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func (s *Server) DeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, r, apperrors.ErrUnauthenticated)
			return
		}
		if err := s.auth.DeleteAccount(r.Context(), claims); err != nil {
			writeError(w, r, err)
			return
		}
		s.ClearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}
