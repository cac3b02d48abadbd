package gateway

import (
	"crypto/subtle"
	"net/http"
)

// secret guards a route with the pre-shared header secret, compared in
// constant time. An empty configured secret disables the check.
func (s *Server) secret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.SharedSecret == "" {
			next(w, r)
			return
		}
		provided := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(s.config.SharedSecret), []byte(provided)) != 1 {
			jsonError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// cors validates the Origin header against the allow list, echoes the
// specific origin back (never a wildcard), and answers preflight. Requests
// without an Origin header (curl, server-to-server) pass through untouched.
func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !s.originAllowed(origin) {
				jsonError(w, http.StatusForbidden, "forbidden: origin not allowed")
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+secretHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
