package server

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/internal/utils"
	"github.com/jrsteele09/go-auth-bridge/pages"
)

type uploadRequest struct {
	FileName  string `json:"fileName"`
	ExpiresIn *int   `json:"expiresIn,omitempty"` // seconds
}

func (s *Server) ListPagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, r, apperrors.Kind(apperrors.ErrInvalidQuery, "limit %q", raw))
				return
			}
			limit = n
		}

		page, err := s.pages.List(r.Context(), claims.Subject, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if page.Items == nil {
			page.Items = []pages.Page{}
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) CreatePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())

		var req pages.CreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		page, err := s.pages.Create(r.Context(), claims.Subject, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, page)
	}
}

func (s *Server) DeletePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if err := s.pages.Delete(r.Context(), claims.Subject, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UploadHandler answers with a two element array: the object key and the
// presigned PUT URL for it.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.uploads == nil {
			writeJSONError(w, "uploads_disabled", "uploads are not configured", http.StatusServiceUnavailable)
			return
		}

		var req uploadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		expiresIn := time.Duration(utils.ValueOr(req.ExpiresIn, 0)) * time.Second

		upload, err := s.uploads.PresignUpload(r.Context(), req.FileName, expiresIn)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []string{upload.Key, upload.URL})
	}
}
