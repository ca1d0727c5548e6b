package middleware

import (
	"context"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

type tokenContextKey struct{}

// AccessTokenFromContext returns the token acquired by [WithAccessToken].
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(string)
	return tok, ok && tok != ""
}

// WithAccessToken acquires an access token for each request. An empty
// result (no account, or an interactive redirect was started) answers 401;
// a malformed provider token answers 502.
func WithAccessToken(auth goSession.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, err := auth.AccessToken(r.Context())
			switch {
			case errors.Is(err, goSession.ErrInvalidTokenFormat):
				http.Error(w, "bad gateway", http.StatusBadGateway)
				return
			case err != nil:
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			case tok == "":
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
