package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	rapidauth "github.com/shrimay18/rapidcare-auth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity injected by [Authenticate] for
// the current request.
func AuthResultFromContext(ctx context.Context) (*rapidauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*rapidauth.AuthResult)
	return res, ok
}

// Authenticate returns middleware that verifies the request's bearer token
// with Engine.Validate and injects the resulting [rapidauth.AuthResult] into
// the request context. Requests without a valid token get 401.
func Authenticate(engine *rapidauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			res, err := engine.Validate(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestContext threads client metadata into the context so engine audit
// events carry the caller's IP and user agent.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = rapidauth.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = rapidauth.WithUserAgent(ctx, ua)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
