package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// AdminHeader carries the admin shared secret.
const AdminHeader = "X-Admin-Password"

// Authenticator checks the admin shared secret.
type Authenticator interface {
	Authenticate(password string) bool
}

// AdminAuthMiddleware rejects requests whose AdminHeader does not match.
func AdminAuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			password := r.Header.Get(AdminHeader)
			if password == "" {
				WriteError(w, http.StatusUnauthorized, "admin password is missing")
				return
			}
			if !auth.Authenticate(password) {
				WriteError(w, http.StatusUnauthorized, "admin password is invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteError sends {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
