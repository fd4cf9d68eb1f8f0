package middleware

import (
	"context"
	"net/http"
)

// OptionalAuth attaches claims when a valid access token is present and
// otherwise serves the request anonymously. A present but invalid token is
// still rejected so the client learns its credential expired.
func OptionalAuth(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, present := accessToken(r); !present {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := authenticate(r, v)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
