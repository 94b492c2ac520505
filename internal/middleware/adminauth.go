package middleware

import (
	"net/http"

	"github.com/smixab/ihub-bot/pkg/utils"
)

// AdminAuth gates admin routes behind the X-Admin-Password header, verified
// against the configured argon2id hash. An empty hash disables the check
// (development mode).
func AdminAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			password := r.Header.Get("X-Admin-Password")
			ok, err := utils.VerifyPassword(password, passwordHash)
			if err != nil || !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Invalid admin credentials"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
