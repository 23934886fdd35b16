package middleware

import (
	"net/http"

	rapidauth "github.com/shrimay18/rapidcare-auth"
)

// RequireRole returns middleware that authenticates the request and then
// requires the token's role claim to be one of the allowed roles. Requests
// with a valid token but a disallowed role get 403.
func RequireRole(engine *rapidauth.Engine, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	authenticate := Authenticate(engine)
	return func(next http.Handler) http.Handler {
		return authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[res.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
