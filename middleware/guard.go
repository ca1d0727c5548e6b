package middleware

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

type userContextKey struct{}

// UserFromContext returns the user injected by a guard.
func UserFromContext(ctx context.Context) (*session.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*session.User)
	return user, ok && user != nil
}

// loadingRetryAfter is the Retry-After hint, in seconds, sent while an
// interactive redirect is in flight.
const loadingRetryAfter = 1

// RequireSession rejects requests with 401 unless auth has a signed-in user.
// While a redirect is pending it answers 503 with a Retry-After header.
func RequireSession(auth goSession.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := guard(w, auth)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole behaves like [RequireSession] and answers 403 when the user
// lacks role.
func RequireRole(auth goSession.Authenticator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := guard(w, auth)
			if !ok {
				return
			}
			if !slices.Contains(user.Roles, role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func guard(w http.ResponseWriter, auth goSession.Authenticator) (*session.User, bool) {
	if auth == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	st := auth.Session()
	if st.IsLoading {
		w.Header().Set("Retry-After", strconv.Itoa(loadingRetryAfter))
		http.Error(w, "session loading", http.StatusServiceUnavailable)
		return nil, false
	}
	if !st.IsAuthenticated || st.User == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return st.User, true
}
