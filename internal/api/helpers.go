package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/TimurManjosov/sprida/internal/auth"
)

// maxBodyBytes bounds request bodies; a split with the largest allowed
// alphabet and group list stays far below it.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v and writes the error response
// itself. It reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "Request body exceeds 1MB")
			return false
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Request body must be valid JSON")
		return false
	}
	return true
}

// authAdmin rejects requests without a valid admin or API key and records the
// caller for the audit log.
func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.auth.Authenticate(r.Header.Get("Authorization"))
		if !res.Authenticated {
			s.recordAuthFailure(r, res.Error)
			if res.Missing {
				UnauthorizedError(w, r, "Missing bearer token")
			} else {
				ForbiddenError(w, r, "Invalid token")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), res.Principal)))
	}
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
