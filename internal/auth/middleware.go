package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/promptvault/promptvault/internal/user"
)

type Middleware struct {
	issuer *Issuer
	users  *user.Service
}

func NewMiddleware(issuer *Issuer, users *user.Service) *Middleware {
	return &Middleware{issuer: issuer, users: users}
}

// Authenticate requires a valid Bearer token and resolves it to a live
// user record, which is attached to the context as the requester.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		userID, err := m.issuer.Verify(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		// The token may outlive the account; re-check the directory.
		u, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := WithRequester(r.Context(), u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"kind": "authentication_error", "message": msg},
	})
}
